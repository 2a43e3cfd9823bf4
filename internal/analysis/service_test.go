package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/careercompass/internal/entitlement"
	"github.com/hitoshi/careercompass/internal/metrics"
	"github.com/hitoshi/careercompass/internal/model"
	"github.com/hitoshi/careercompass/internal/repository"
	"github.com/hitoshi/careercompass/internal/security"
)

// --- モック定義 ---

type mockAnalysisRepo struct {
	createFn      func(ctx context.Context, analysis *model.Analysis) error
	listByUserFn  func(ctx context.Context, userID string) ([]*model.Analysis, error)
	findForUserFn func(ctx context.Context, userID, analysisID string) (*model.Analysis, error)
	setFavoriteFn func(ctx context.Context, userID, analysisID string, favorite bool) error
	deleteFn      func(ctx context.Context, userID, analysisID string) error
}

func (m *mockAnalysisRepo) Create(ctx context.Context, analysis *model.Analysis) error {
	if m.createFn != nil {
		return m.createFn(ctx, analysis)
	}
	return nil
}

func (m *mockAnalysisRepo) CountByTypesSince(ctx context.Context, userID string, types []model.AnalysisType, since time.Time) (int, error) {
	return 0, nil
}

func (m *mockAnalysisRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (m *mockAnalysisRepo) ListByUser(ctx context.Context, userID string) ([]*model.Analysis, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAnalysisRepo) FindForUser(ctx context.Context, userID, analysisID string) (*model.Analysis, error) {
	if m.findForUserFn != nil {
		return m.findForUserFn(ctx, userID, analysisID)
	}
	return nil, nil
}

func (m *mockAnalysisRepo) SetFavorite(ctx context.Context, userID, analysisID string, favorite bool) error {
	if m.setFavoriteFn != nil {
		return m.setFavoriteFn(ctx, userID, analysisID, favorite)
	}
	return nil
}

func (m *mockAnalysisRepo) Delete(ctx context.Context, userID, analysisID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, analysisID)
	}
	return nil
}

var _ repository.AnalysisRepository = (*mockAnalysisRepo)(nil)

type mockEntitlements struct {
	checkFn   func(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error)
	canSaveFn func(ctx context.Context, userID string) (bool, error)
}

func (m *mockEntitlements) CheckAnalysisEligibility(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error) {
	if m.checkFn != nil {
		return m.checkFn(ctx, userID, analysisType)
	}
	return &entitlement.Eligibility{CanAnalyze: true}, nil
}

func (m *mockEntitlements) CanSaveAnalysis(ctx context.Context, userID string) (bool, error) {
	if m.canSaveFn != nil {
		return m.canSaveFn(ctx, userID)
	}
	return true, nil
}

type mockTicketConsumer struct {
	consumeFn func(ctx context.Context, userID string, analysisType model.AnalysisType) (bool, error)
	calls     int
}

func (m *mockTicketConsumer) ConsumeForAnalysis(ctx context.Context, userID string, analysisType model.AnalysisType) (bool, error) {
	m.calls++
	if m.consumeFn != nil {
		return m.consumeFn(ctx, userID, analysisType)
	}
	return true, nil
}

var (
	_ EntitlementChecker = (*mockEntitlements)(nil)
	_ TicketConsumer     = (*mockTicketConsumer)(nil)
)

type runRecorder struct {
	metrics.Noop
	runs []string
}

func (r *runRecorder) RecordAnalysisRun(analysisType string, viaTicket bool) {
	suffix := "plan"
	if viaTicket {
		suffix = "ticket"
	}
	r.runs = append(r.runs, analysisType+"/"+suffix)
}

func newTestService(repo *mockAnalysisRepo, ent *mockEntitlements, tickets *mockTicketConsumer, rec metrics.Recorder) *Service {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return NewService(repo, ent, tickets, security.NewContentSanitizer(), rec)
}

func validInput(t model.AnalysisType) SaveInput {
	return SaveInput{
		AnalysisType: t,
		InputText:    "今の仕事で感じていること",
		ResultText:   "<p>あなたの強みは計画性です。</p>",
		Title:        "6月の自己分析",
		Tags:         []string{"強み", "キャリア"},
	}
}

// --- Record のテスト ---

func TestRecord_WithinPlanLimit(t *testing.T) {
	var created *model.Analysis
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			created = analysis
			return nil
		},
	}
	tickets := &mockTicketConsumer{}
	rec := &runRecorder{}

	svc := newTestService(repo, &mockEntitlements{}, tickets, rec)

	got, err := svc.Record(context.Background(), "user-1", validInput(model.AnalysisTypeStrengths))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if created == nil {
		t.Fatal("expected analysis to be created")
	}
	if got.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", got.UserID, "user-1")
	}
	if got.ViaTicket {
		t.Error("viaTicket = true, want false for plan-covered run")
	}
	if tickets.calls != 0 {
		t.Errorf("ticket consumption called %d times, want 0", tickets.calls)
	}
	if len(rec.runs) != 1 || rec.runs[0] != "strengths/plan" {
		t.Errorf("recorded runs = %v, want [strengths/plan]", rec.runs)
	}
}

func TestRecord_ViaTicket_ConsumesTicket(t *testing.T) {
	ent := &mockEntitlements{
		checkFn: func(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error) {
			return &entitlement.Eligibility{CanAnalyze: true, ViaTicket: true}, nil
		},
	}
	var consumedType model.AnalysisType
	tickets := &mockTicketConsumer{
		consumeFn: func(ctx context.Context, userID string, analysisType model.AnalysisType) (bool, error) {
			consumedType = analysisType
			return true, nil
		},
	}
	rec := &runRecorder{}

	svc := newTestService(&mockAnalysisRepo{}, ent, tickets, rec)

	got, err := svc.Record(context.Background(), "user-1", validInput(model.AnalysisTypePersona))
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !got.ViaTicket {
		t.Error("viaTicket = false, want true")
	}
	if consumedType != model.AnalysisTypePersona {
		t.Errorf("consumed for %q, want %q", consumedType, model.AnalysisTypePersona)
	}
	if len(rec.runs) != 1 || rec.runs[0] != "persona/ticket" {
		t.Errorf("recorded runs = %v, want [persona/ticket]", rec.runs)
	}
}

func TestRecord_TicketConsumedConcurrently_RejectedAsLimit(t *testing.T) {
	// 資格判定と消費の間に別リクエストがチケットを使い切ったケース
	ent := &mockEntitlements{
		checkFn: func(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error) {
			return &entitlement.Eligibility{
				CanAnalyze: true,
				ViaTicket:  true,
				Usage:      &entitlement.UsageInfo{Used: 3, Limit: 3},
			}, nil
		},
	}
	tickets := &mockTicketConsumer{
		consumeFn: func(ctx context.Context, userID string, analysisType model.AnalysisType) (bool, error) {
			return false, nil
		},
	}
	createCalled := false
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			createCalled = true
			return nil
		},
	}
	rec := &runRecorder{}

	svc := newTestService(repo, ent, tickets, rec)

	_, err := svc.Record(context.Background(), "user-1", validInput(model.AnalysisTypeClarity))
	if err == nil {
		t.Fatal("expected error when ticket consumption misses")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeLimitExceeded {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeLimitExceeded)
	}
	if createCalled {
		t.Error("analysis must not be created when consumption fails")
	}
	if len(rec.runs) != 0 {
		t.Errorf("recorded runs = %v, want none", rec.runs)
	}
}

func TestRecord_LimitExceeded_NoTicket(t *testing.T) {
	ent := &mockEntitlements{
		checkFn: func(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error) {
			return &entitlement.Eligibility{
				CanAnalyze: false,
				Reason:     entitlement.ReasonLimitExceeded,
				Usage:      &entitlement.UsageInfo{Used: 3, Limit: 3},
			}, nil
		},
	}
	createCalled := false
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			createCalled = true
			return nil
		},
	}

	svc := newTestService(repo, ent, &mockTicketConsumer{}, nil)

	_, err := svc.Record(context.Background(), "user-1", validInput(model.AnalysisTypeCareer))
	if err == nil {
		t.Fatal("expected limit error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeLimitExceeded {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeLimitExceeded)
	}
	if createCalled {
		t.Error("analysis must not be created when eligibility is denied")
	}
}

func TestRecord_InvalidAnalysisType(t *testing.T) {
	checkCalled := false
	ent := &mockEntitlements{
		checkFn: func(ctx context.Context, userID string, analysisType model.AnalysisType) (*entitlement.Eligibility, error) {
			checkCalled = true
			return &entitlement.Eligibility{CanAnalyze: true}, nil
		},
	}

	svc := newTestService(&mockAnalysisRepo{}, ent, &mockTicketConsumer{}, nil)

	_, err := svc.Record(context.Background(), "user-1", validInput(model.AnalysisType("horoscope")))
	if err == nil {
		t.Fatal("expected error for unknown analysis type")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeInvalidAnalysisType {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidAnalysisType)
	}
	if checkCalled {
		t.Error("eligibility must not be consulted for invalid types")
	}
}

func TestRecord_SanitizesContent(t *testing.T) {
	var created *model.Analysis
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			created = analysis
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	input := SaveInput{
		AnalysisType: model.AnalysisTypeValues,
		InputText:    "  <b>自由</b>を大切にしたい  ",
		ResultText:   `<p>結果</p><script>alert("xss")</script>`,
		Title:        "<img src=x onerror=alert(1)>タイトル",
		Tags:         []string{"<script></script>", "価値観"},
	}

	if _, err := svc.Record(context.Background(), "user-1", input); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if strings.Contains(created.ResultText, "<script>") {
		t.Errorf("result text still contains script tag: %q", created.ResultText)
	}
	if !strings.Contains(created.ResultText, "<p>結果</p>") {
		t.Errorf("allowed tags should survive, got %q", created.ResultText)
	}
	if strings.Contains(created.Title, "<") {
		t.Errorf("title should be plain text, got %q", created.Title)
	}
	if strings.Contains(created.InputText, "<b>") {
		t.Errorf("input text should be plain text, got %q", created.InputText)
	}
	// 空になったタグは除去される
	if len(created.Tags) != 1 || created.Tags[0] != "価値観" {
		t.Errorf("tags = %v, want [価値観]", created.Tags)
	}
}

func TestRecord_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	var created *model.Analysis
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			created = analysis
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)
	svc.SetNowFunc(func() time.Time { return fixed })

	if _, err := svc.Record(context.Background(), "user-1", validInput(model.AnalysisTypeClarity)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if !created.CreatedAt.Equal(fixed) {
		t.Errorf("createdAt = %v, want %v", created.CreatedAt, fixed)
	}
}

// --- Save のテスト ---

func TestSave_FreePlan_Rejected(t *testing.T) {
	ent := &mockEntitlements{
		canSaveFn: func(ctx context.Context, userID string) (bool, error) {
			return false, nil
		},
	}
	createCalled := false
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			createCalled = true
			return nil
		},
	}

	svc := newTestService(repo, ent, &mockTicketConsumer{}, nil)

	_, err := svc.Save(context.Background(), "user-1", validInput(model.AnalysisTypeStrengths))
	if err == nil {
		t.Fatal("expected save to be rejected for free plan")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeSaveNotAllowed {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeSaveNotAllowed)
	}
	if createCalled {
		t.Error("analysis must not be created when save is not allowed")
	}
}

func TestSave_PaidPlan_Succeeds(t *testing.T) {
	var created *model.Analysis
	repo := &mockAnalysisRepo{
		createFn: func(ctx context.Context, analysis *model.Analysis) error {
			created = analysis
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	if _, err := svc.Save(context.Background(), "user-1", validInput(model.AnalysisTypeStrengths)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if created == nil {
		t.Fatal("expected analysis to be created")
	}
}

// --- Get / SetFavorite / Delete のテスト ---

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(&mockAnalysisRepo{}, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	_, err := svc.Get(context.Background(), "user-1", "missing")
	if err == nil {
		t.Fatal("expected error for unknown analysis")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeAnalysisNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAnalysisNotFound)
	}
}

func TestGet_Found(t *testing.T) {
	repo := &mockAnalysisRepo{
		findForUserFn: func(ctx context.Context, userID, analysisID string) (*model.Analysis, error) {
			return &model.Analysis{ID: analysisID, UserID: userID, Title: "分析"}, nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	got, err := svc.Get(context.Background(), "user-1", "a-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "a-1" {
		t.Errorf("ID = %q, want %q", got.ID, "a-1")
	}
}

func TestSetFavorite_NotFound(t *testing.T) {
	updateCalled := false
	repo := &mockAnalysisRepo{
		setFavoriteFn: func(ctx context.Context, userID, analysisID string, favorite bool) error {
			updateCalled = true
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	if err := svc.SetFavorite(context.Background(), "user-1", "missing", true); err == nil {
		t.Fatal("expected error for unknown analysis")
	}
	if updateCalled {
		t.Error("favorite must not be updated for unknown analysis")
	}
}

func TestSetFavorite_Success(t *testing.T) {
	var capturedFavorite bool
	repo := &mockAnalysisRepo{
		findForUserFn: func(ctx context.Context, userID, analysisID string) (*model.Analysis, error) {
			return &model.Analysis{ID: analysisID, UserID: userID}, nil
		},
		setFavoriteFn: func(ctx context.Context, userID, analysisID string, favorite bool) error {
			capturedFavorite = favorite
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	if err := svc.SetFavorite(context.Background(), "user-1", "a-1", true); err != nil {
		t.Fatalf("SetFavorite() error = %v", err)
	}
	if !capturedFavorite {
		t.Error("favorite = false, want true")
	}
}

func TestDelete_NotFound(t *testing.T) {
	deleteCalled := false
	repo := &mockAnalysisRepo{
		deleteFn: func(ctx context.Context, userID, analysisID string) error {
			deleteCalled = true
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	if err := svc.Delete(context.Background(), "user-1", "missing"); err == nil {
		t.Fatal("expected error for unknown analysis")
	}
	if deleteCalled {
		t.Error("delete must not run for unknown analysis")
	}
}

func TestDelete_Success(t *testing.T) {
	deleted := false
	repo := &mockAnalysisRepo{
		findForUserFn: func(ctx context.Context, userID, analysisID string) (*model.Analysis, error) {
			return &model.Analysis{ID: analysisID, UserID: userID}, nil
		},
		deleteFn: func(ctx context.Context, userID, analysisID string) error {
			deleted = true
			return nil
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	if err := svc.Delete(context.Background(), "user-1", "a-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("expected delete to run")
	}
}

func TestList_PropagatesRepositoryError(t *testing.T) {
	repo := &mockAnalysisRepo{
		listByUserFn: func(ctx context.Context, userID string) ([]*model.Analysis, error) {
			return nil, errors.New("db down")
		},
	}

	svc := newTestService(repo, &mockEntitlements{}, &mockTicketConsumer{}, nil)

	if _, err := svc.List(context.Background(), "user-1"); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
