// Package instagram describes Instagram data as the scraping actor returns it,
// along with handle helpers shared by the HTTP and CLI layers.
//
// The raw types are deliberately loose: counts may arrive as floats, strings
// or null, and list fields distinguish "absent" from "empty" so extraction can
// decide whether to fall back to parsing captions.
//
//	handle, ok := instagram.NormalizeHandle("@NatGeo/")
//	// handle == "natgeo"
package instagram
