package lzfse

import (
	"sync"

	"github.com/pkg/errors"
)

// Compressor adapts LZFSE to block stores that compress whole blocks
// through a Name/Compress interface. It is safe for concurrent use.
type Compressor struct {
	encoders sync.Pool
}

// Name returns "lzfse".
func (c *Compressor) Name() string { return "lzfse" }

// Compress appends the compressed contents of src to dst.
func (c *Compressor) Compress(src, dst []byte) []byte {
	e, _ := c.encoders.Get().(*Encoder)
	if e == nil {
		e = new(Encoder)
	}
	dst = e.Encode(dst, src)
	c.encoders.Put(e)
	return dst
}

// Decompressor is the decoding half of Compressor. It is safe for
// concurrent use.
type Decompressor struct {
	decoders sync.Pool
}

func (d *Decompressor) Name() string { return "lzfse" }

// Decompress decompresses src into dst, which must be exactly the size of
// the decompressed data.
func (d *Decompressor) Decompress(src, dst []byte) error {
	dec, _ := d.decoders.Get().(*Decoder)
	if dec == nil {
		dec = new(Decoder)
	}
	defer d.decoders.Put(dec)

	dec.Reset(src)
	dec.noHistory = true
	n, err := dec.Decode(dst)
	if err == ErrDestinationFull {
		return errors.Errorf("lzfse decompress: output larger than %d bytes", len(dst))
	}
	if err != nil {
		return err
	}
	if n != len(dst) {
		return errors.Errorf("expected %d bytes decompressed; got %d", len(dst), n)
	}
	return nil
}
