// Package identifier produces human-readable codes for appointments and
// clinical encounters.
//
// Codes are unique with high probability only. The store holding them
// enforces uniqueness and callers regenerate on a collision.
package identifier

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	AppointmentPrefix  = "AG-"
	appointmentSuffix  = 5
	tenantSuffixLength = 4
)

// Generator builds identifiers from a clock and a random source.
type Generator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand io.Reader
}

// New returns a Generator using the wall clock and crypto/rand.
func New() *Generator {
	return &Generator{now: time.Now, rand: crand.Reader}
}

// NewWithSource is used in tests to make output deterministic.
func NewWithSource(now func() time.Time, rand io.Reader) *Generator {
	return &Generator{now: now, rand: rand}
}

// AppointmentCode returns "AG-" followed by the base-36 millisecond timestamp
// and a short base-36 random suffix, upper-cased.
func (g *Generator) AppointmentCode() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)

	var sb strings.Builder
	for i := 0; i < appointmentSuffix; i++ {
		sb.WriteString(strconv.FormatUint(g.randUint64()%36, 36))
	}
	return AppointmentPrefix + strings.ToUpper(ts+sb.String())
}

// EncounterNumber returns the tenant suffix, the date as YYYYMMDD, and a
// zero-padded random four-digit number.
func (g *Generator) EncounterNumber(tenantID string, date time.Time) string {
	return fmt.Sprintf("%s%s%04d", TenantSuffix(tenantID), date.Format("20060102"), g.randUint64()%10000)
}

// TenantSuffix returns the last four alphanumeric characters of the tenant
// id, upper-cased and left-padded with zeros.
func TenantSuffix(tenantID string) string {
	var alnum []rune
	for _, r := range strings.ToUpper(tenantID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum = append(alnum, r)
		}
	}
	if len(alnum) > tenantSuffixLength {
		alnum = alnum[len(alnum)-tenantSuffixLength:]
	}
	return strings.Repeat("0", tenantSuffixLength-len(alnum)) + string(alnum)
}

func (g *Generator) randUint64() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var buf [8]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the clock.
		return uint64(g.now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}
