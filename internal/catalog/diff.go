package catalog

// Diff returns the listings of cur whose key is absent from prev, in cur order.
// Removed and modified listings are not reported. When both fingerprints are
// set and equal the result is empty without a key scan.
func Diff(prev, cur Snapshot) []Listing {
	if prev.Fingerprint != "" && prev.Fingerprint == cur.Fingerprint {
		return nil
	}
	seen := prev.Keys()
	var added []Listing
	for _, l := range cur.Listings {
		if _, ok := seen[l.Key]; ok {
			continue
		}
		added = append(added, l)
	}
	return added
}
