// Package journal turns batches of archive journal messages into counter
// updates. Messages carry msgpack-encoded objects keyed by their identifier.
package journal

import (
	"errors"
	"reflect"

	"github.com/ugorji/go/codec"
)

// Object types with a key extractor.
const (
	TypeOrigin   = "origin"
	TypeRevision = "revision"
	TypeRelease  = "release"
)

var errEmptyValue = errors.New("nil bytes to decode")

var msgpackHandle = &codec.MsgpackHandle{}

func init() {
	msgpackHandle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	msgpackHandle.WriteExt = true
}

// Person is the identity of an author or a committer.
type Person struct {
	Fullname []byte `codec:"fullname"`
	Name     []byte `codec:"name"`
	Email    []byte `codec:"email"`
}

// Revision is a commit. Author and Committer may be missing.
type Revision struct {
	ID        []byte  `codec:"id"`
	Author    *Person `codec:"author"`
	Committer *Person `codec:"committer"`
}

// Release is a tag. Author may be missing.
type Release struct {
	ID     []byte  `codec:"id"`
	Name   []byte  `codec:"name"`
	Author *Person `codec:"author"`
}

// Origin is the location a software project was archived from.
type Origin struct {
	URL string `codec:"url"`
}

// Decode decodes a msgpack-encoded object into dest.
func Decode(b []byte, dest interface{}) error {
	if len(b) == 0 {
		return errEmptyValue
	}
	dec := codec.NewDecoderBytes(b, msgpackHandle)
	return dec.Decode(dest)
}

// Encode encodes an object with msgpack, the way the journal does.
func Encode(v interface{}) ([]byte, error) {
	var b []byte
	enc := codec.NewEncoderBytes(&b, msgpackHandle)
	err := enc.Encode(v)
	return b, err
}
