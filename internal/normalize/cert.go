package normalize

import (
	"strings"
	"time"

	"github.com/kestrelsec/kestrel/internal/domain"
)

// CertInput is the analyze-cert request payload.
type CertInput struct {
	ID      string `json:"id,omitempty"`
	Subject struct {
		CommonName string `json:"commonName"`
	} `json:"subject"`
	Issuer struct {
		CommonName string `json:"commonName"`
	} `json:"issuer"`
	Validity struct {
		NotBefore time.Time `json:"notBefore"`
		NotAfter  time.Time `json:"notAfter"`
	} `json:"validity"`
	PublicKey struct {
		Algorithm string `json:"algorithm"`
		Size      int    `json:"size"`
	} `json:"publicKey"`
	Signature struct {
		Algorithm string `json:"algorithm"`
	} `json:"signature"`
	ChainDepth int      `json:"chainDepth,omitempty"`
	SANs       []string `json:"sans,omitempty"`
}

// Cert builds the grading-catalogue record for one certificate. The
// reference time is an explicit input so normalization stays a pure
// function; the gateway supplies it once per request.
func Cert(in CertInput, now time.Time) domain.Record {
	subject := strings.ToLower(in.Subject.CommonName)
	issuer := strings.ToLower(in.Issuer.CommonName)

	rec := domain.Record{
		"id":                   in.ID,
		"subject_cn":           subject,
		"issuer_cn":            issuer,
		"self_signed":          subject != "" && subject == issuer,
		"signature_algorithm":  strings.ToLower(in.Signature.Algorithm),
		"public_key_algorithm": strings.ToLower(in.PublicKey.Algorithm),
		"public_key_size":      in.PublicKey.Size,
		"chain_depth":          in.ChainDepth,
		"san_count":            len(in.SANs),
	}

	if !in.Validity.NotAfter.IsZero() {
		rec["not_after"] = in.Validity.NotAfter.Unix()
		rec["days_until_expiry"] = int(in.Validity.NotAfter.Sub(now).Hours() / 24)
	}
	if !in.Validity.NotBefore.IsZero() {
		rec["not_before"] = in.Validity.NotBefore.Unix()
		rec["not_yet_valid"] = now.Before(in.Validity.NotBefore)
	}
	if !in.Validity.NotBefore.IsZero() && !in.Validity.NotAfter.IsZero() {
		rec["validity_days"] = int(in.Validity.NotAfter.Sub(in.Validity.NotBefore).Hours() / 24)
	}

	for _, san := range in.SANs {
		if strings.HasPrefix(san, "*.") {
			rec["wildcard_san"] = strings.ToLower(san)
			break
		}
	}

	return rec
}
