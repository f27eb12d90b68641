package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"schedforge/internal/types"
)

// SignaturePrefix versions the signature format.
const SignaturePrefix = "sv1"

// certificateNamespace scopes name-based certificate ids.
var certificateNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("schedforge/validation-certificate"))

// HashSchedule returns the SHA-256 of the schedule's JSON encoding.
func HashSchedule(out *types.ScheduleOutput) (string, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal schedule: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashSet returns the SHA-256 of a content type set, order independent.
func HashSet(set []string) string {
	sorted := make([]string, len(set))
	copy(sorted, set)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

func (v *Validator) seal(cert *types.ValidationCertificate, out *types.ScheduleOutput, cc types.CreatorContext) error {
	h, err := HashSchedule(out)
	if err != nil {
		return err
	}
	cert.ScheduleHash = h
	cert.VaultHash = HashSet(cc.AllowedContentTypes)
	cert.AvoidHash = HashSet(cc.AvoidContentTypes)

	cert.Timestamp = v.now().UTC().Truncate(time.Second)
	cert.ExpiresAt = cert.Timestamp.Add(v.cfg.Freshness)
	cert.CertificateID = uuid.NewSHA1(certificateNamespace,
		[]byte(cert.CreatorID+"|"+cert.WeekStart+"|"+cert.ScheduleHash+"|"+strconv.FormatInt(cert.Timestamp.Unix(), 10))).String()
	cert.Signature = Sign(cert)
	return nil
}

// Sign derives the signature string: prefix, a short digest over the
// certificate's identifying fields, and the issue time in unix seconds.
func Sign(cert *types.ValidationCertificate) string {
	payload := strings.Join([]string{
		cert.Version,
		cert.CertificateID,
		cert.CreatorID,
		cert.WeekStart,
		cert.ScheduleHash,
		cert.VaultHash,
		cert.AvoidHash,
		string(cert.Status),
		strconv.FormatFloat(cert.QualityScore, 'f', 2, 64),
		strconv.FormatInt(cert.Timestamp.Unix(), 10),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%s-%s-%d", SignaturePrefix, hex.EncodeToString(sum[:])[:12], cert.Timestamp.Unix())
}

// Verify reports whether cert matches out and carries an intact signature.
func Verify(cert *types.ValidationCertificate, out *types.ScheduleOutput) error {
	h, err := HashSchedule(out)
	if err != nil {
		return err
	}
	if h != cert.ScheduleHash {
		return fmt.Errorf("schedule hash mismatch: certificate %s, schedule %s", short(cert.ScheduleHash), short(h))
	}
	if want := Sign(cert); want != cert.Signature {
		return fmt.Errorf("signature mismatch: got %s, want %s", cert.Signature, want)
	}
	return nil
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
