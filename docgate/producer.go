package docgate

import "strings"

// Exporter signatures of browser-based design tools whose PDF output often
// outlines text into vector shapes. Matching one of these never rejects by
// itself; it only lowers the fragmentation thresholds, because plenty of
// legitimate resumes come out of the same pipelines.
var designToolSignatures = []string{
	"figma",
	"canva",
	"skia/pdf",
	"headlesschrome",
}

// IsDesignToolExport does a case-insensitive substring match of the PDF
// Producer and Creator strings against known design-export signatures.
func IsDesignToolExport(producer, creator string) bool {
	meta := strings.ToLower(producer + " " + creator)
	for _, sig := range designToolSignatures {
		if strings.Contains(meta, sig) {
			return true
		}
	}
	return false
}
