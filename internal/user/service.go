// Package user はプロフィール管理とお問い合わせのドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
	"github.com/hitoshi/careercompass/internal/security"
)

// ProfileUpdateInput はプロフィール更新の入力を表す。
type ProfileUpdateInput struct {
	Name                string
	OnboardingCompleted bool
}

// ContactInput はお問い合わせ投稿の入力を表す。
type ContactInput struct {
	Email   string
	Subject string
	Message string
}

// Service はプロフィール管理のサービス層。
type Service struct {
	profileRepo repository.ProfileRepository
	contactRepo repository.ContactRepository
	sanitizer   security.ContentSanitizerService
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	contactRepo repository.ContactRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		contactRepo: contactRepo,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// SetNowFunc はテスト用に現在時刻の取得関数を差し替える。
func (s *Service) SetNowFunc(now func() time.Time) {
	s.now = now
}

// GetProfile はプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}
	return profile, nil
}

// UpdateProfile は表示名とオンボーディング完了フラグを更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileUpdateInput) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError()
	}

	name := s.sanitizer.SanitizePlain(input.Name)
	if name == "" {
		name = profile.Name
	}

	if err := s.profileRepo.Update(ctx, userID, name, input.OnboardingCompleted); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	profile.Name = name
	profile.OnboardingCompleted = input.OnboardingCompleted
	return profile, nil
}

// SubmitContact はお問い合わせを受け付ける。
// 件名と本文は必須。本文はサニタイズして保存する。
func (s *Service) SubmitContact(ctx context.Context, userID string, input ContactInput) error {
	email := strings.TrimSpace(input.Email)
	subject := s.sanitizer.SanitizePlain(input.Subject)
	message := s.sanitizer.SanitizePlain(input.Message)
	if email == "" || subject == "" || message == "" {
		return model.NewInvalidRequestError()
	}

	msg := &model.ContactMessage{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		Subject:   subject,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.contactRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("お問い合わせの作成に失敗しました: %w", err)
	}
	return nil
}
