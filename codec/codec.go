// Package codec defines the pluggable serializers used by cellar.
package codec

// Codec encodes/decodes values V to []byte for storage. Ext names the
// default filename extension for items this codec writes into a collection;
// it is the element-type hint embedded in the on-disk naming contract
// (stem = index, extension = element type), so it must be stable.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
	Ext() string
}
