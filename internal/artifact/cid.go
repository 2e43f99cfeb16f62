package artifact

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentID returns the CIDv1 (raw codec, sha2-256) of data.
func ContentID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

func contentIDString(data []byte) string {
	c, err := ContentID(data)
	if err != nil {
		// unreachable for sha2-256 with default length
		return ""
	}
	return c.String()
}
