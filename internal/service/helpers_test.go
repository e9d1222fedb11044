package service

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"serenity/internal/entity"
	"serenity/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu       sync.Mutex
	messages []EmailMessage
	err      error
}

func (s *recordingSender) SendEmail(ctx context.Context, message EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

func (s *recordingSender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSender) sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmailMessage(nil), s.messages...)
}

var codePattern = regexp.MustCompile(`verification code is: (\d{6})`)

func (s *recordingSender) lastCode(t *testing.T) string {
	t.Helper()
	messages := s.sent()
	require.NotEmpty(t, messages, "no email sent")
	match := codePattern.FindStringSubmatch(messages[len(messages)-1].Text)
	require.Len(t, match, 2, "no code in email body")
	return match[1]
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entity.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type authFixture struct {
	db           *gorm.DB
	clock        *fakeClock
	mailer       *recordingSender
	users        repository.UserRepository
	otps         repository.OTPRepository
	securityLogs repository.SecurityLogRepository
	otpService   *OTPService
	issuer       *JWTSessionIssuer
	service      *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := setupServiceDB(t)
	f := &authFixture{
		db:           db,
		clock:        newFakeClock(),
		mailer:       &recordingSender{},
		users:        repository.NewUserRepository(db),
		otps:         repository.NewOTPRepository(db),
		securityLogs: repository.NewSecurityLogRepository(db),
	}
	f.otpService = NewOTPService(f.otps, f.clock, OTPConfig{}, quietLogger())
	f.issuer = NewJWTSessionIssuer("test-secret", "serenity", 0, repository.NewSessionRepository(db), f.users, f.clock)
	f.service = f.newService(f.otpService, f.issuer)
	return f
}

func (f *authFixture) newService(otps *OTPService, sessions SessionIssuer) *AuthService {
	return NewAuthService(
		f.users,
		f.securityLogs,
		otps,
		f.mailer,
		BcryptPasswordHasher{Cost: bcrypt.MinCost},
		sessions,
		f.clock,
		validator.New(),
		quietLogger(),
	)
}

func (f *authFixture) countOTPs(t *testing.T, email string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&entity.OTP{}).Where("email = ?", email).Count(&count).Error)
	return count
}
