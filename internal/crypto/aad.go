package crypto

import "strings"

// BuildAAD returns the associated data bound into an order envelope:
//
//	AADContext 0x00 seed 0x00 slot 0x00 recipient1 "," recipient2 ...
//
// Recipients are base64 public keys in the order they appear in the
// published record. Moving an envelope to another seed or slot, or editing
// the recipient list, makes AEAD authentication fail.
func BuildAAD(seed, slot string, recipients []string) []byte {
	var b strings.Builder
	b.WriteString(AADContext)
	b.WriteByte(0)
	b.WriteString(seed)
	b.WriteByte(0)
	b.WriteString(slot)
	b.WriteByte(0)
	b.WriteString(strings.Join(recipients, ","))
	return []byte(b.String())
}
