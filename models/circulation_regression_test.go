package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/mmdatafocus/lendstock_backend/workflow"
)

func TestCirculationLifecycleKeepsLedgerConsistent(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()
	logger := config.GetLogger()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lendstock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	// History rows need an acting user.
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	unit, err := models.CreateStockUnit(ctx, &models.NewStockUnit{
		Name:     "Oscilloscope",
		Category: "lab",
		Kind:     models.StockKindUsable,
		TotalQty: 10,
	})
	if err != nil {
		t.Fatalf("CreateStockUnit: %v", err)
	}
	if unit.AvailableQty != 10 || unit.Status != models.StockStatusAvailable {
		t.Fatalf("new unit: available=%d status=%q", unit.AvailableQty, unit.Status)
	}

	student, err := models.CreateStudent(ctx, &models.NewStudent{
		Name:          "Aye Chan",
		StudentNumber: "STU-0001",
		Email:         "aye@campus.test",
	})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}

	borrower := models.BorrowerRef{Type: models.BorrowerTypeStudent, Id: student.ID}
	due := time.Now().UTC().AddDate(0, 0, 7)

	txn, err := workflow.SubmitBorrowRequest(ctx, &workflow.NewBorrowRequest{
		Borrower:           borrower,
		StockUnitId:        unit.ID,
		Qty:                4,
		ExpectedReturnDate: due,
	})
	if err != nil {
		t.Fatalf("SubmitBorrowRequest: %v", err)
	}
	if txn.Status != models.BorrowStatusPending {
		t.Fatalf("submitted status = %q", txn.Status)
	}
	// Submission must not reserve anything.
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.AvailableQty != 10 {
		t.Fatalf("available after submit = %d, want 10", unit.AvailableQty)
	}

	if _, err := workflow.ApproveBorrow(ctx, txn.ID); err != nil {
		t.Fatalf("ApproveBorrow: %v", err)
	}
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.AvailableQty != 6 {
		t.Fatalf("available after approve = %d, want 6", unit.AvailableQty)
	}

	// Approving twice is an invalid transition; the ledger must not move.
	var invalid *models.InvalidStateTransitionError
	if _, err := workflow.ApproveBorrow(ctx, txn.ID); !errors.As(err, &invalid) {
		t.Fatalf("second approve: got %v, want InvalidStateTransitionError", err)
	}
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.AvailableQty != 6 {
		t.Fatalf("available after rejected double-approve = %d, want 6", unit.AvailableQty)
	}

	// A second request exceeding availability fails on approval and stays
	// pending.
	big, err := workflow.SubmitBorrowRequest(ctx, &workflow.NewBorrowRequest{
		Borrower:           borrower,
		StockUnitId:        unit.ID,
		Qty:                7,
		ExpectedReturnDate: due,
	})
	if err != nil {
		t.Fatalf("submit oversized request: %v", err)
	}
	var insufficient *models.InsufficientStockError
	if _, err := workflow.ApproveBorrow(ctx, big.ID); !errors.As(err, &insufficient) {
		t.Fatalf("oversized approve: got %v, want InsufficientStockError", err)
	}
	big, _ = models.GetBorrowTransaction(ctx, big.ID)
	if big.Status != models.BorrowStatusPending {
		t.Fatalf("oversized request status = %q, want pending", big.Status)
	}
	if _, err := workflow.RejectBorrow(ctx, big.ID, "not enough stock"); err != nil {
		t.Fatalf("RejectBorrow: %v", err)
	}

	// Archiving the unit is blocked while a loan is open.
	var blocked *models.ArchiveBlockedError
	if _, err := models.ArchiveStockUnit(ctx, unit.ID); !errors.As(err, &blocked) {
		t.Fatalf("archive with open loan: got %v, want ArchiveBlockedError", err)
	}

	// Return claim: stock stays reserved until verification.
	verification, err := workflow.ReportReturn(ctx, txn.ID, &workflow.ReportReturnInput{
		ReturnedBy: "Aye Chan",
	})
	if err != nil {
		t.Fatalf("ReportReturn: %v", err)
	}
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.AvailableQty != 6 {
		t.Fatalf("available after report = %d, want 6 (still reserved)", unit.AvailableQty)
	}

	var duplicate *models.DuplicateVerificationError
	if _, err := workflow.ReportReturn(ctx, txn.ID, &workflow.ReportReturnInput{}); !errors.As(err, &duplicate) {
		t.Fatalf("second report: got %v, want DuplicateVerificationError", err)
	}

	if _, err := workflow.ResolveReturnVerification(ctx, logger, verification.ID,
		workflow.ResolveDecisionVerify, "all pieces present"); err != nil {
		t.Fatalf("ResolveReturnVerification: %v", err)
	}
	txn, _ = models.GetBorrowTransaction(ctx, txn.ID)
	if txn.Status != models.BorrowStatusReturned {
		t.Fatalf("status after verify = %q, want returned", txn.Status)
	}

	// Resolving the same verification twice is a conflict, not a bad request.
	var resolved *models.VerificationResolvedError
	if _, err := workflow.ResolveReturnVerification(ctx, logger, verification.ID,
		workflow.ResolveDecisionVerify, "again"); !errors.As(err, &resolved) {
		t.Fatalf("second resolve: got %v, want VerificationResolvedError", err)
	} else if resolved.VerificationId != verification.ID {
		t.Fatalf("resolved error carries id %d, want %d", resolved.VerificationId, verification.ID)
	}
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.AvailableQty != 10 || unit.TotalQty != 10 {
		t.Fatalf("ledger after verify: available=%d total=%d, want 10/10", unit.AvailableQty, unit.TotalQty)
	}

	// Verification spawned exactly one pending inspection record.
	records, err := models.ListPendingInspections(ctx)
	if err != nil {
		t.Fatalf("ListPendingInspections: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("pending inspections = %d, want 1", len(records))
	}
	record := records[0]

	if _, err := workflow.InspectReturnRecord(ctx, record.ID, &workflow.InspectInput{
		InspectionStatus: models.InspectionStatusGood,
	}); err != nil {
		t.Fatalf("InspectReturnRecord: %v", err)
	}
	var inspected *models.AlreadyInspectedError
	if _, err := workflow.InspectReturnRecord(ctx, record.ID, &workflow.InspectInput{
		InspectionStatus: models.InspectionStatusMinorDamage,
	}); !errors.As(err, &inspected) {
		t.Fatalf("second inspect: got %v, want AlreadyInspectedError", err)
	}

	// Lost loan: the reserved quantity leaves the pool permanently.
	lostTxn, err := workflow.SubmitBorrowRequest(ctx, &workflow.NewBorrowRequest{
		Borrower:           borrower,
		StockUnitId:        unit.ID,
		Qty:                2,
		ExpectedReturnDate: due,
	})
	if err != nil {
		t.Fatalf("submit lost-path request: %v", err)
	}
	if _, err := workflow.ApproveBorrow(ctx, lostTxn.ID); err != nil {
		t.Fatalf("approve lost-path request: %v", err)
	}
	if _, err := workflow.DeclareLost(ctx, lostTxn.ID, "never returned"); err != nil {
		t.Fatalf("DeclareLost: %v", err)
	}
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.TotalQty != 8 || unit.AvailableQty != 8 {
		t.Fatalf("ledger after loss: available=%d total=%d, want 8/8", unit.AvailableQty, unit.TotalQty)
	}

	// Conservation: reserved + available == total once all loans are settled.
	reserved, err := models.ReservedQtyForStockUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("ReservedQtyForStockUnit: %v", err)
	}
	if reserved+unit.AvailableQty != unit.TotalQty {
		t.Fatalf("conservation broken: reserved=%d available=%d total=%d",
			reserved, unit.AvailableQty, unit.TotalQty)
	}

	// All loans are terminal now, so archive and restore both succeed.
	archived, err := models.ArchiveStockUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("ArchiveStockUnit: %v", err)
	}
	if archived.AutoDeleteAt == nil {
		t.Fatal("archive did not stamp auto_delete_at")
	}
	if _, err := models.ArchiveStockUnit(ctx, unit.ID); !errors.Is(err, models.ErrAlreadyArchived) {
		t.Fatalf("double archive: got %v, want ErrAlreadyArchived", err)
	}
	restored, err := models.RestoreStockUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("RestoreStockUnit: %v", err)
	}
	if restored.IsArchived() || restored.AutoDeleteAt != nil {
		t.Fatalf("restore left archive state: %+v", restored.Archivable)
	}

	// Every transition left an audit row.
	histories, err := models.GetHistories(ctx, "BorrowTransaction", txn.ID)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) < 3 {
		t.Fatalf("history rows = %d, want at least submit/approve/report/verify", len(histories))
	}
}

func TestRejectedReturnRevertsToOverdueWhenPastDue(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()
	logger := config.GetLogger()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lendstock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	unit, err := models.CreateStockUnit(ctx, &models.NewStockUnit{
		Name:     "Projector",
		Kind:     models.StockKindUsable,
		TotalQty: 3,
	})
	if err != nil {
		t.Fatalf("CreateStockUnit: %v", err)
	}

	// Borrowed yesterday, due yesterday: already past due when the claim lands.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	txn, err := workflow.SubmitBorrowRequest(ctx, &workflow.NewBorrowRequest{
		Borrower:           models.BorrowerRef{Type: models.BorrowerTypeCustom, Name: "Visitor"},
		StockUnitId:        unit.ID,
		Qty:                1,
		BorrowDate:         yesterday.AddDate(0, 0, -3),
		ExpectedReturnDate: yesterday,
	})
	if err != nil {
		t.Fatalf("SubmitBorrowRequest: %v", err)
	}
	if _, err := workflow.ApproveBorrow(ctx, txn.ID); err != nil {
		t.Fatalf("ApproveBorrow: %v", err)
	}

	verification, err := workflow.ReportReturn(ctx, txn.ID, &workflow.ReportReturnInput{})
	if err != nil {
		t.Fatalf("ReportReturn: %v", err)
	}

	if _, err := workflow.ResolveReturnVerification(ctx, logger, verification.ID,
		workflow.ResolveDecisionReject, "item not received"); err != nil {
		t.Fatalf("reject claim: %v", err)
	}

	txn, _ = models.GetBorrowTransaction(ctx, txn.ID)
	if txn.Status != models.BorrowStatusOverdue {
		t.Fatalf("status after rejected past-due claim = %q, want overdue", txn.Status)
	}
	// The stock never moved.
	unit, _ = models.GetStockUnit(ctx, unit.ID)
	if unit.AvailableQty != 2 {
		t.Fatalf("available = %d, want 2 (still reserved)", unit.AvailableQty)
	}

	// A rejected claim does not block reporting again.
	if _, err := workflow.ReportReturn(ctx, txn.ID, &workflow.ReportReturnInput{}); err != nil {
		t.Fatalf("re-report after rejection: %v", err)
	}
}

// Two approvals racing for the same stock must serialize on the row lock:
// with 3 available and two requests for 3 each, exactly one approval wins.
func TestConcurrentApprovalsSerializeOnStock(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lendstock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	unit, err := models.CreateStockUnit(ctx, &models.NewStockUnit{
		Name:     "VR Headset",
		Kind:     models.StockKindUsable,
		TotalQty: 3,
	})
	if err != nil {
		t.Fatalf("CreateStockUnit: %v", err)
	}

	due := time.Now().UTC().AddDate(0, 0, 7)
	borrower := models.BorrowerRef{Type: models.BorrowerTypeCustom, Name: "Visitor"}

	var ids [2]int
	for i := range ids {
		txn, err := workflow.SubmitBorrowRequest(ctx, &workflow.NewBorrowRequest{
			Borrower:           borrower,
			StockUnitId:        unit.ID,
			Qty:                3,
			ExpectedReturnDate: due,
		})
		if err != nil {
			t.Fatalf("SubmitBorrowRequest %d: %v", i, err)
		}
		ids[i] = txn.ID
	}

	errs := make(chan error, len(ids))
	for _, id := range ids {
		go func(id int) {
			_, err := workflow.ApproveBorrow(ctx, id)
			errs <- err
		}(id)
	}

	var won, lost int
	for range ids {
		err := <-errs
		switch {
		case err == nil:
			won++
		default:
			var insufficient *models.InsufficientStockError
			if !errors.As(err, &insufficient) {
				t.Fatalf("losing approve: got %v, want InsufficientStockError", err)
			}
			lost++
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("approvals won=%d lost=%d, want exactly one of each", won, lost)
	}

	unit, err = models.GetStockUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetStockUnit: %v", err)
	}
	if unit.AvailableQty != 0 {
		t.Fatalf("available after race = %d, want 0 (never negative, never double-spent)", unit.AvailableQty)
	}
	if unit.Status != models.StockStatusOutOfStock {
		t.Fatalf("status after race = %q, want out_of_stock", unit.Status)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lendstock-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lendstock-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=lendstock_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
