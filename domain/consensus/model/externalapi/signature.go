package externalapi

// AggregateSignatures combines the aggregated signatures of several bundles
// selected for the same block into the single aggregated signature carried
// by the assembled SpendBundle. Real BLS
// aggregation is the signature scheme's own point-addition operation,
// supplied by the out-of-scope signing library; this concatenates the
// per-bundle signatures in selection order as the stand-in the core's tests
// can check without a real curve implementation.
func AggregateSignatures(signatures [][]byte) []byte {
	total := 0
	for _, sig := range signatures {
		total += len(sig)
	}
	aggregated := make([]byte, 0, total)
	for _, sig := range signatures {
		aggregated = append(aggregated, sig...)
	}
	return aggregated
}
