package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/shopfront/internal/auth"
	"github.com/joao-fontenele/shopfront/internal/domain"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrInvalidOTP   = errors.New("invalid or expired OTP")
	ErrPhoneTaken   = errors.New("phone number already registered")
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)

const DefaultOTPTTL = 10 * time.Minute

type UserStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// Challenge describes a code that was just issued. Code is only filled in
// when the service echoes codes back, since SMS delivery is not wired.
type Challenge struct {
	Phone     string `json:"phone_number"`
	Code      string `json:"otp,omitempty"`
	ExpiresIn int    `json:"expires_in"`
}

type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type ServiceOption func(*Service)

func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.otpTTL = ttl
	}
}

// WithEchoCodes makes issued codes part of the Challenge.
func WithEchoCodes(echo bool) ServiceOption {
	return func(s *Service) {
		s.echoCodes = echo
	}
}

func WithCodeGenerator(generate func() (string, error)) ServiceOption {
	return func(s *Service) {
		s.generate = generate
	}
}

func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

type Service struct {
	users      UserStore
	codes      CodeStore
	tokens     *auth.Tokens
	logger     *slog.Logger
	otpTTL     time.Duration
	echoCodes  bool
	generate   func() (string, error)
	bcryptCost int
}

func NewService(users UserStore, codes CodeStore, tokens *auth.Tokens, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		users:      users,
		codes:      codes,
		tokens:     tokens,
		logger:     logger,
		otpTTL:     DefaultOTPTTL,
		generate:   generateCode,
		bcryptCost: bcrypt.DefaultCost,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) normalize(phone string) (string, error) {
	normalized := NormalizePhone(phone)
	if !validPhone(normalized) {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}

// SendRegistrationOTP issues a code for a phone number that has no account yet.
func (s *Service) SendRegistrationOTP(ctx context.Context, phone string) (*Challenge, error) {
	normalized, err := s.normalize(phone)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.FindByPhone(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	if existing != nil {
		return nil, ErrPhoneTaken
	}

	return s.issue(ctx, PurposeRegister, normalized)
}

// SendLoginOTP issues a code for a registered phone number.
func (s *Service) SendLoginOTP(ctx context.Context, phone string) (*Challenge, error) {
	normalized, err := s.normalize(phone)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.FindByPhone(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}

	return s.issue(ctx, PurposeLogin, normalized)
}

func (s *Service) issue(ctx context.Context, purpose Purpose, phone string) (*Challenge, error) {
	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	if err := s.codes.Save(ctx, purpose, phone, code, s.otpTTL); err != nil {
		return nil, fmt.Errorf("save otp: %w", err)
	}

	s.logger.Debug("otp issued", "purpose", purpose, "phone", phone, "otp", code)

	challenge := &Challenge{Phone: phone, ExpiresIn: int(s.otpTTL.Seconds())}
	if s.echoCodes {
		challenge.Code = code
	}
	return challenge, nil
}

// VerifyOTP checks a registration code without using it up.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) error {
	normalized, err := s.normalize(phone)
	if err != nil {
		return err
	}

	ok, err := s.codes.Check(ctx, PurposeRegister, normalized, code)
	if err != nil {
		return fmt.Errorf("check otp: %w", err)
	}
	if !ok {
		return ErrInvalidOTP
	}
	return nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	OTP      string
}

// Register creates a customer account. The code is spent only once the
// email and phone are known to be free.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	phone, err := s.normalize(in.Phone)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if existing, err := s.users.FindByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	} else if existing != nil {
		return nil, ErrEmailTaken
	}

	if existing, err := s.users.FindByPhone(ctx, phone); err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	} else if existing != nil {
		return nil, ErrPhoneTaken
	}

	ok, err := s.codes.Consume(ctx, PurposeRegister, phone, in.OTP)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		return nil, ErrInvalidOTP
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PhoneNumber:  phone,
		Role:         domain.RoleUser,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.restoreCode(ctx, PurposeRegister, phone, in.OTP)
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrPhoneTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.session(user)
}

// restoreCode puts back a consumed code whose request failed afterwards,
// so the caller can retry without asking for a new one.
func (s *Service) restoreCode(ctx context.Context, purpose Purpose, phone, code string) {
	if err := s.codes.Save(context.WithoutCancel(ctx), purpose, phone, code, s.otpTTL); err != nil {
		s.logger.Error("failed to restore otp", "error", err, "purpose", purpose)
	}
}

func (s *Service) Login(ctx context.Context, phone, code string) (*Session, error) {
	normalized, err := s.normalize(phone)
	if err != nil {
		return nil, err
	}

	ok, err := s.codes.Consume(ctx, PurposeLogin, normalized, code)
	if err != nil {
		return nil, fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		return nil, ErrInvalidOTP
	}

	user, err := s.users.FindByPhone(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return s.session(user)
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

func (s *Service) Me(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

type ShopkeeperAccount struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// EnsureShopkeeper creates the shopkeeper account unless one already exists
// for the phone number.
func (s *Service) EnsureShopkeeper(ctx context.Context, acct ShopkeeperAccount) error {
	phone, err := s.normalize(acct.Phone)
	if err != nil {
		return err
	}

	existing, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("find shopkeeper: %w", err)
	}
	if existing != nil {
		if existing.Role != domain.RoleShopkeeper {
			return fmt.Errorf("phone %s belongs to a %s account", phone, existing.Role)
		}
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     acct.Username,
		Email:        strings.ToLower(strings.TrimSpace(acct.Email)),
		PhoneNumber:  phone,
		Role:         domain.RoleShopkeeper,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("create shopkeeper: %w", err)
	}

	s.logger.Info("shopkeeper account created", "user_id", user.ID)
	return nil
}
