package notification

// Summarize counts successes and failures overall and per kind.
// The result does not depend on the order of results.
func Summarize(results []DeliveryResult) Summary {
	s := Summary{
		Total:  len(results),
		ByKind: make(map[Kind]KindSummary),
	}
	for _, r := range results {
		ks := s.ByKind[r.Kind]
		if r.Success {
			s.Succeeded++
			ks.Succeeded++
		} else {
			s.Failed++
			ks.Failed++
		}
		s.ByKind[r.Kind] = ks
	}
	return s
}
