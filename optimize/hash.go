package optimize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func hashObject(obj types.Object) string {
	h := sha256.New()
	writeHash(h, obj)
	return hex.EncodeToString(h.Sum(nil))
}

func writeHash(h hash.Hash, obj types.Object) {
	switch t := obj.(type) {
	case nil:
		fmt.Fprint(h, "nil")
	case types.IndirectRef:
		fmt.Fprintf(h, "%d %d R", t.ObjectNumber.Value(), t.GenerationNumber.Value())
	case types.Array:
		fmt.Fprint(h, "[")
		for _, v := range t {
			writeHash(h, v)
			fmt.Fprint(h, ",")
		}
		fmt.Fprint(h, "]")
	case types.Dict:
		fmt.Fprint(h, "<<")
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		// Sort keys for consistent hashing
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprint(h, "/", k, " ")
			writeHash(h, t[k])
		}
		fmt.Fprint(h, ">>")
	case types.StreamDict:
		writeHash(h, t.Dict)
		h.Write(t.Raw)
	default:
		fmt.Fprintf(h, "%T:%s", obj, obj.PDFString())
	}
}
