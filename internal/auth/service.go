package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/runboard/internal/model"
	"github.com/hitoshi/runboard/internal/repository"
)

// Config はServiceの設定。
type Config struct {
	// DefaultStoreID はプロフィール作成時に割り当てるパーティション。
	DefaultStoreID string
}

// Service はサインアップ・ログイン・役割切り替えを提供する。
type Service struct {
	users  repository.UserRepository
	issuer *TokenIssuer
	logger *slog.Logger
	config Config

	now func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, issuer *TokenIssuer, logger *slog.Logger, config Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		issuer: issuer,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// SignupInput はサインアップの入力。
type SignupInput struct {
	DisplayName string
	Email       string
	Password    string
}

// LoginResult はログイン・サインアップ成功時の応答。
type LoginResult struct {
	Token   string
	Profile *model.UserProfile
}

// Signup は新規ユーザーを登録し、アクセストークンを発行する。
// 初期プロフィールは販売員・ランナー両方の役割を持ち、有効役割は販売員になる。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*LoginResult, error) {
	displayName := strings.TrimSpace(input.DisplayName)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if displayName == "" {
		return nil, model.NewValidationError("displayNameは必須です")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, model.NewValidationError("emailが不正です")
	}
	if len(input.Password) < 8 {
		return nil, model.NewValidationError("passwordは8文字以上で指定してください")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("ユーザーの検索に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreUnavailableError()
	}
	if existing != nil {
		return nil, model.NewDuplicateUserError(email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("パスワードのハッシュ化に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreUnavailableError()
	}

	now := s.now().UTC()
	profile := &model.UserProfile{
		UID:          uuid.NewString(),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        []model.Role{model.RoleSeller, model.RoleRunner},
		ActiveRole:   model.RoleSeller,
		StoreID:      s.config.DefaultStoreID,
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := s.users.Create(ctx, profile); err != nil {
		s.logger.Error("プロフィールの作成に失敗しました",
			slog.String("error", err.Error()),
			slog.String("uid", profile.UID),
		)
		return nil, model.NewStoreUnavailableError()
	}

	token, err := s.issuer.Issue(profile.UID, profile.DisplayName, profile.Email)
	if err != nil {
		s.logger.Error("トークンの発行に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreUnavailableError()
	}

	s.logger.Info("ユーザーを登録しました",
		slog.String("uid", profile.UID),
		slog.String("store_id", profile.StoreID),
	)
	return &LoginResult{Token: token, Profile: profile}, nil
}

// Login は資格情報を検証し、アクセストークンを発行する。
// 未登録メールとパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	profile, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("ユーザーの検索に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreUnavailableError()
	}
	if profile == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, profile.UID, now); err != nil {
		// ログイン自体は成功しているため記録失敗は警告のみ
		s.logger.Warn("最終ログイン日時の更新に失敗しました",
			slog.String("error", err.Error()),
			slog.String("uid", profile.UID),
		)
	}
	profile.LastLogin = now

	token, err := s.issuer.Issue(profile.UID, profile.DisplayName, profile.Email)
	if err != nil {
		s.logger.Error("トークンの発行に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreUnavailableError()
	}

	return &LoginResult{Token: token, Profile: profile}, nil
}

// LoadPrincipal は検証済みクレームからプロフィールを読み込み、認証主体を構築する。
func (s *Service) LoadPrincipal(ctx context.Context, claims *Claims) (*model.Principal, error) {
	profile, err := s.users.FindByUID(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("プロフィールの取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("uid", claims.Subject),
		)
		return nil, model.NewStoreUnavailableError()
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}

	return &model.Principal{
		UID:         profile.UID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Roles:       profile.Roles,
		ActiveRole:  profile.ActiveRole,
		StoreID:     profile.StoreID,
	}, nil
}

// SwitchRole は有効役割を切り替える。保持していない役割への切り替えは拒否される。
func (s *Service) SwitchRole(ctx context.Context, principal *model.Principal, role model.Role) (*model.Principal, error) {
	if principal == nil {
		return nil, model.NewAuthenticationRequiredError()
	}
	if !role.Valid() {
		return nil, model.NewInvalidRoleError(role)
	}

	profile, err := s.users.FindByUID(ctx, principal.UID)
	if err != nil {
		s.logger.Error("プロフィールの取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("uid", principal.UID),
		)
		return nil, model.NewStoreUnavailableError()
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !profile.HasRole(role) {
		return nil, model.NewInvalidRoleError(role)
	}

	if err := s.users.UpdateActiveRole(ctx, profile.UID, role); err != nil {
		s.logger.Error("有効役割の更新に失敗しました",
			slog.String("error", err.Error()),
			slog.String("uid", profile.UID),
		)
		return nil, model.NewStoreUnavailableError()
	}

	updated := *principal
	updated.ActiveRole = role
	return &updated, nil
}
