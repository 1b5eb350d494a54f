// Package util provides helpers shared by the extraction stages.
package util

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagInfo names a DICOM tag by its dictionary keyword.
type TagInfo struct {
	Name string
	Tag  tag.Tag
}

// tagRegistry maps lowercase keywords to their TagInfo.
var tagRegistry = map[string]TagInfo{
	"transfersyntaxuid":          {Name: "TransferSyntaxUID", Tag: tag.TransferSyntaxUID},
	"mediastoragesopclassuid":    {Name: "MediaStorageSOPClassUID", Tag: tag.MediaStorageSOPClassUID},
	"mediastoragesopinstanceuid": {Name: "MediaStorageSOPInstanceUID", Tag: tag.MediaStorageSOPInstanceUID},

	"patientname": {Name: "PatientName", Tag: tag.PatientName},
	"patientid":   {Name: "PatientID", Tag: tag.PatientID},

	"numberofframes":            {Name: "NumberOfFrames", Tag: tag.NumberOfFrames},
	"rows":                      {Name: "Rows", Tag: tag.Rows},
	"columns":                   {Name: "Columns", Tag: tag.Columns},
	"photometricinterpretation": {Name: "PhotometricInterpretation", Tag: tag.PhotometricInterpretation},

	"pixeldata":            {Name: "PixelData", Tag: tag.PixelData},
	"encapsulateddocument": {Name: "EncapsulatedDocument", Tag: tag.EncapsulatedDocument},
}

// GetTagByName returns TagInfo for a given keyword.
// The lookup is case-insensitive. Keywords outside the registry are resolved
// through the DICOM dictionary. If the keyword is unknown, the error suggests
// the closest registered keyword (using Levenshtein distance).
func GetTagByName(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))
	if normalizedName == "" {
		return TagInfo{}, fmt.Errorf("empty tag name")
	}

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	// FindByKeyword also matches descriptions ("Study Description").
	keyword := strings.TrimSpace(name)
	if info, err := tag.FindByKeyword(keyword); err == nil && info.Keyword == keyword {
		return TagInfo{Name: info.Keyword, Tag: info.Tag}, nil
	}

	suggestion := findClosestTagName(normalizedName)
	if suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}

	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// ParseTagNames resolves a list of keywords, failing on the first unknown one.
func ParseTagNames(names []string) ([]TagInfo, error) {
	infos := make([]TagInfo, 0, len(names))
	for _, n := range names {
		info, err := GetTagByName(n)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// findClosestTagName finds the closest matching tag name using Levenshtein distance.
// Returns empty string if no close match is found (distance > 5).
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, info := range tagRegistry {
		distance := levenshteinDistance(input, key)
		if distance < bestDistance || (distance == bestDistance && info.Name < bestMatch) {
			bestDistance = distance
			bestMatch = info.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance is the minimum number of single-character edits
// needed to turn a into b.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
