package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装。全呼び出しを記録する。
type execCall struct {
	query string
	args  []interface{}
}

type mockExecutor struct {
	calls  []execCall
	result sql.Result
	err    error
	// failOn が空でない場合、クエリがその文字列を含むときだけerrを返す
	failOn string
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.calls = append(m.calls, execCall{query: query, args: args})
	if m.err != nil && (m.failOn == "" || strings.Contains(query, m.failOn)) {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockExecutor) queryContaining(substr string) (execCall, bool) {
	for _, c := range m.calls {
		if strings.Contains(c.query, substr) {
			return c, true
		}
	}
	return execCall{}, false
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, logger)

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
}

func TestCleanupJob_Run_SweepsAnalysesForFiniteRetentionPlans(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 5},
	}
	job := NewCleanupJob(mock, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	call, ok := mock.queryContaining("DELETE FROM analyses")
	if !ok {
		t.Fatal("分析レコードのDELETEクエリが実行されなかった")
	}
	if !strings.Contains(call.query, "created_at") {
		t.Errorf("クエリに 'created_at' 条件が含まれていない: %s", call.query)
	}
	if !strings.Contains(call.query, "subscription_status") {
		t.Errorf("クエリにプランの条件が含まれていない: %s", call.query)
	}
}

func TestCleanupJob_Run_StandardPlanUses90DayInterval(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	found := false
	for _, call := range mock.calls {
		if !strings.Contains(call.query, "DELETE FROM analyses") {
			continue
		}
		if len(call.args) < 2 {
			t.Fatalf("分析削除クエリの引数が不足している: %v", call.args)
		}
		if call.args[0] == "standard" {
			found = true
			if call.args[1] != "90 days" {
				t.Errorf("standardプランのinterval引数 = %v, want %q", call.args[1], "90 days")
			}
		}
	}
	if !found {
		t.Error("standardプランの掃き出しクエリが実行されなかった")
	}
}

func TestCleanupJob_Run_SkipsUnlimitedAndZeroRetentionPlans(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	for _, call := range mock.calls {
		if !strings.Contains(call.query, "DELETE FROM analyses") {
			continue
		}
		switch call.args[0] {
		case "free":
			// 無料プランの分析レコードは当月利用回数の算出に使うため消さない
			t.Error("freeプランは掃き出し対象にしてはならない")
		case "premium":
			// 無期限保持
			t.Error("premiumプランは掃き出し対象にしてはならない")
		}
	}
}

func TestCleanupJob_Run_ExpiresPendingReferrals(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 3},
	}
	job := NewCleanupJob(mock, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	call, ok := mock.queryContaining("UPDATE referrals")
	if !ok {
		t.Fatal("紹介コードの期限切れ処理クエリが実行されなかった")
	}
	if !strings.Contains(call.query, "expires_at") {
		t.Errorf("クエリに 'expires_at' 条件が含まれていない: %s", call.query)
	}
	if len(call.args) != 2 || call.args[0] != "expired" || call.args[1] != "pending" {
		t.Errorf("状態遷移の引数が期待と異なる: %v", call.args)
	}
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 7},
	}
	job := NewCleanupJob(mock, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	call, ok := mock.queryContaining("DELETE FROM sessions")
	if !ok {
		t.Fatal("期限切れセッションの削除クエリが実行されなかった")
	}
	if !strings.Contains(call.query, "expires_at") {
		t.Errorf("クエリに 'expires_at' 条件が含まれていない: %s", call.query)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 42},
	}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok {
			if count == float64(42) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		err: sql.ErrConnDone,
	}
	job := NewCleanupJob(mock, logger)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}

	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
}

func TestCleanupJob_Run_ContinuesAfterSweepFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	// 分析の掃き出しだけが失敗しても、残りの処理は続行する
	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 1},
		err:    sql.ErrConnDone,
		failOn: "DELETE FROM analyses",
	}
	job := NewCleanupJob(mock, logger)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("掃き出し失敗時に Run() はエラーを返すべき")
	}

	if _, ok := mock.queryContaining("UPDATE referrals"); !ok {
		t.Error("掃き出し失敗後も紹介コードの期限切れ処理は実行されるべき")
	}
	if _, ok := mock.queryContaining("DELETE FROM sessions"); !ok {
		t.Error("掃き出し失敗後もセッション削除は実行されるべき")
	}
}

func TestCleanupJob_Run_LogsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		err: sql.ErrConnDone,
	}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	logOutput := buf.String()
	if !strings.Contains(logOutput, "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", logOutput)
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 0},
	}
	job := NewCleanupJob(mock, logger)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}

	// 冪等性: 削除対象がなくてもエラーにならない
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}
}

func TestCleanupJob_Run_LogsExecutionTime(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	mock := &mockExecutor{
		result: &fakeResult{rowsAffected: 3},
	}
	job := NewCleanupJob(mock, logger)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry["duration_ms"]; ok {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}
