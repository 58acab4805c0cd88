// Package fingerprint computes the content-address used by the
// document registry (spec.md §3: fingerprint is a 256-bit hex digest
// of SHA256(content) combined with a canonical JSON of the metadata
// key tuple).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/finsight/analyst/internal/model"
)

// keyTuple is the canonical, order-stable JSON shape combined with the
// content hash. Field names are fixed so two callers that compute a
// fingerprint for equivalent metadata always agree byte-for-byte.
type keyTuple struct {
	CompanyNameLower string `json:"companyNameLowercase"`
	FormTypeLower    string `json:"formTypeLowercase"`
	FilingDate       string `json:"filingDate"`
	AccessionNumber  string `json:"accessionNumber"`
}

// ContentHash returns SHA256(content) as lowercase hex. It is distinct
// from Fingerprint and used for quick content-equality checks.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Fingerprint computes the registry primary key: a deterministic
// function of (content, metadata). Recomputing it for the same inputs
// always yields the same value (spec.md §8 invariant 4).
func Fingerprint(content string, meta model.DocumentMetadata) (string, error) {
	tuple := keyTuple{
		CompanyNameLower: strings.ToLower(meta.CompanyName),
		FormTypeLower:    strings.ToLower(meta.FormType),
		FilingDate:       meta.FilingDate,
		AccessionNumber:  meta.AccessionNumber,
	}
	canonical, err := json.Marshal(tuple)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(ContentHash(content)))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SimilarityTriple is the looser duplicate key from spec.md §4.2 tier
// 2: (companyNameLowercase, formTypeLowercase, filingDate).
func SimilarityTriple(meta model.DocumentMetadata) string {
	return strings.ToLower(meta.CompanyName) + "\x00" + strings.ToLower(meta.FormType) + "\x00" + meta.FilingDate
}
