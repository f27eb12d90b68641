package logging

import (
	"testing"

	"go.uber.org/zap"
)

func BenchmarkAuditDisabled(b *testing.B) {
	Use(zap.NewNop(), Options{})
	a := AuditFor("creator-1", "2026-10-19")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.CertificateIssued("cert", "APPROVED", 91.5)
	}
}

func BenchmarkAuditEnabledNop(b *testing.B) {
	Use(zap.NewNop(), Options{DebugMode: true})
	a := AuditFor("creator-1", "2026-10-19")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		a.CertificateIssued("cert", "APPROVED", 91.5)
	}
}
