package middleware

import (
	"github.com/tinylib/msgp/msgp"
)

// MarshalMsg implements msgp.Marshaler.
func (z *CachedResponse) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "status")
	o = msgp.AppendInt(o, z.Status)
	o = msgp.AppendString(o, "headers")
	o = msgp.AppendMapHeader(o, uint32(len(z.Headers)))
	for header, values := range z.Headers {
		o = msgp.AppendString(o, header)
		o = msgp.AppendArrayHeader(o, uint32(len(values)))
		for _, value := range values {
			o = msgp.AppendString(o, value)
		}
	}
	o = msgp.AppendString(o, "body")
	o = msgp.AppendBytes(o, z.Body)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (z *CachedResponse) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var fields uint32
	fields, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for ; fields > 0; fields-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "status":
			z.Status, bts, err = msgp.ReadIntBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Status")
				return
			}
		case "headers":
			var headers uint32
			headers, bts, err = msgp.ReadMapHeaderBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Headers")
				return
			}
			z.Headers = make(map[string][]string, headers)
			for ; headers > 0; headers-- {
				var header string
				var count uint32
				header, bts, err = msgp.ReadStringBytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Headers")
					return
				}
				count, bts, err = msgp.ReadArrayHeaderBytes(bts)
				if err != nil {
					err = msgp.WrapError(err, "Headers", header)
					return
				}
				values := make([]string, count)
				for i := range values {
					values[i], bts, err = msgp.ReadStringBytes(bts)
					if err != nil {
						err = msgp.WrapError(err, "Headers", header, i)
						return
					}
				}
				z.Headers[header] = values
			}
		case "body":
			z.Body, bts, err = msgp.ReadBytesBytes(bts, z.Body)
			if err != nil {
				err = msgp.WrapError(err, "Body")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the encoded size.
func (z *CachedResponse) Msgsize() (s int) {
	s = 1 + 7 + msgp.IntSize + 8 + msgp.MapHeaderSize
	for header, values := range z.Headers {
		s += msgp.StringPrefixSize + len(header) + msgp.ArrayHeaderSize
		for _, value := range values {
			s += msgp.StringPrefixSize + len(value)
		}
	}
	s += 5 + msgp.BytesPrefixSize + len(z.Body)
	return
}
