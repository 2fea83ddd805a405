package client

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
)

// ExtractParams collects every scalar leaf value from an arbitrarily
// nested parameter structure into a flat list, recursing into maps and
// slices and ignoring the surrounding structure.
func ExtractParams(params interface{}) []interface{} {
	var values []interface{}
	switch p := params.(type) {
	case map[string]interface{}:
		for _, v := range p {
			values = append(values, ExtractParams(v)...)
		}
	case []interface{}:
		for _, v := range p {
			values = append(values, ExtractParams(v)...)
		}
	case []string:
		for _, v := range p {
			values = append(values, v)
		}
	default:
		values = append(values, params)
	}
	return values
}

// SignatureString returns the unhashed signature string for an API
// call: the shared secret followed by every flattened parameter value,
// stringified and sorted lexicographically, concatenated with no
// separator. The sort is string order, never numeric or insertion
// order; the remote end reproduces this exact byte sequence.
func SignatureString(params interface{}, secret string) string {
	leaves := ExtractParams(params)
	strs := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		strs = append(strs, stringify(leaf))
	}
	sort.Strings(strs)

	out := secret
	for _, s := range strs {
		out += s
	}
	return out
}

// SignatureHash returns the hex-encoded MD5 digest of the signature
// string for an API call.
func SignatureHash(params interface{}, secret string) string {
	sum := md5.Sum([]byte(SignatureString(params, secret)))
	return hex.EncodeToString(sum[:])
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
