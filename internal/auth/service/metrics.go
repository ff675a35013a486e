package service

import (
	"github.com/AlibekovAA/taskforge/backend/internal/observability/metrics"
)

func incrementRegistrations(outcome string) {
	metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func incrementLogins(outcome string) {
	metrics.LoginsTotal.WithLabelValues(outcome).Inc()
}

func incrementPasswordRehashNeeded() {
	metrics.PasswordRehashNeeded.Inc()
}

func incrementRefreshTokensIssued() {
	metrics.RefreshTokensIssued.Inc()
}

func incrementRefreshTokensUsed() {
	metrics.RefreshTokensUsed.Inc()
}

func incrementRefreshTokensRevoked() {
	metrics.RefreshTokensRevoked.Inc()
}

func incrementRefreshTokensExpired() {
	metrics.RefreshTokensExpired.Inc()
}

func incrementRefreshTokensReplayed() {
	metrics.RefreshTokensReplayed.Inc()
}

func incrementAccessTokensIssued() {
	metrics.AccessTokensIssued.Inc()
}
