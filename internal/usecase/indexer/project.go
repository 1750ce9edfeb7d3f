package indexer

import "sort"

// Project drops the fields absent from the live schema, returning the kept
// fields and the sorted names of the dropped ones.
func Project(fields map[string]string, allowed map[string]bool) (map[string]string, []string) {
	projected := make(map[string]string, len(fields))
	var dropped []string
	for name, value := range fields {
		if allowed[name] {
			projected[name] = value
			continue
		}
		dropped = append(dropped, name)
	}
	sort.Strings(dropped)
	return projected, dropped
}
