// Package integrity implements tamper evidence for assessments: a
// canonical-form SHA-256 hash over the whole record (excluding the
// integrity block itself) and reviewer/submission signature hashes.
package integrity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/agentindex/ami-cli/internal/model"
)

// HashAlgorithm is the only algorithm integrity blocks may carry.
const HashAlgorithm = "sha256"

// Canonicalize encodes v as canonical JSON: object keys sorted
// lexicographically at every depth, array order preserved, number
// literals carried through unchanged. The output is a pure function of
// the value's content, stable across decode/encode round trips.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "integrity: marshal value")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, eris.Wrap(err, "integrity: decode value")
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return eris.Wrap(err, "integrity: marshal key")
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(t.String())
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return eris.Wrap(err, "integrity: marshal scalar")
		}
		buf.Write(b)
	}
	return nil
}

// ComputeHash stamps an assessment: it hashes the canonical form of the
// record with its integrity block removed, so the digest depends on every
// other field and nothing else. The input is not mutated.
func ComputeHash(a *model.Assessment) (*model.Integrity, error) {
	digest, err := digestAssessment(a)
	if err != nil {
		return nil, err
	}
	return &model.Integrity{
		AssessmentHash: digest,
		HashAlgorithm:  HashAlgorithm,
		HashedAt:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Verify recomputes the assessment hash and compares it to the stored
// integrity block. A missing block or a mismatch both fail verification;
// the computed digest is returned either way.
func Verify(a *model.Assessment) (bool, string, error) {
	digest, err := digestAssessment(a)
	if err != nil {
		return false, "", err
	}
	if a.Integrity == nil {
		return false, digest, nil
	}
	return a.Integrity.AssessmentHash == digest, digest, nil
}

func digestAssessment(a *model.Assessment) (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", eris.Wrap(err, "integrity: marshal assessment")
	}
	var clone map[string]any
	if err := json.Unmarshal(raw, &clone); err != nil {
		return "", eris.Wrap(err, "integrity: clone assessment")
	}
	delete(clone, "integrity")

	canonical, err := Canonicalize(clone)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ComputeSignatureHash derives a reviewer signature for an assessment:
// sha256(handle + signed_at + system_id + assessment_id).
func ComputeSignatureHash(handle, signedAt, systemID, assessmentID string) string {
	sum := sha256.Sum256([]byte(handle + signedAt + systemID + assessmentID))
	return hex.EncodeToString(sum[:])
}

// ComputeSubmissionSignature derives a review signature for a submission:
// sha256(handle + reviewed_at + submission_id).
func ComputeSubmissionSignature(handle, reviewedAt, submissionID string) string {
	sum := sha256.Sum256([]byte(handle + reviewedAt + submissionID))
	return hex.EncodeToString(sum[:])
}

// VerifyReviewerSignatures recomputes every reviewer signature on a
// published assessment and returns a message per mismatch. Reviewers with
// incomplete signature fields are skipped; the gate validator reports
// those separately.
func VerifyReviewerSignatures(a *model.Assessment) []string {
	if a.Review == nil || a.Review.State != model.ReviewPublished {
		return nil
	}

	var errors []string
	for i, r := range a.Review.Reviewers {
		if r.Handle == "" || r.SignedAt == "" || r.SignatureHash == "" {
			continue
		}
		expected := ComputeSignatureHash(r.Handle, r.SignedAt, a.SystemID, a.AssessmentID)
		if r.SignatureHash != expected {
			errors = append(errors, reviewerMismatch(i, r.SignatureHash, expected))
		}
	}
	return errors
}

func reviewerMismatch(idx int, stored, expected string) string {
	return fmt.Sprintf("reviewer[%d] signature_hash mismatch: stored %q vs computed %q",
		idx, truncate(stored)+"...", truncate(expected)+"...")
}

func truncate(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
