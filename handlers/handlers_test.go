package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"civicaid/config"
	"civicaid/crypto"
	"civicaid/middleware"
	"civicaid/services"
	"civicaid/websocket"
)

// =====================
// Mock Implementations
// =====================

// MockDB represents a mock database connection for unit tests
type MockDB struct {
	mock.Mock
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	callArgs := append([]interface{}{ctx, sql}, args...)
	mockArgs := m.Called(callArgs...)
	return mockArgs.Get(0).(pgx.Row)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	callArgs := append([]interface{}{ctx, sql}, args...)
	mockArgs := m.Called(callArgs...)
	rowsAffected := mockArgs.Get(0).(int64)
	tag := pgconn.NewCommandTag("UPDATE " + fmt.Sprintf("%d", rowsAffected))
	return tag, mockArgs.Error(1)
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	callArgs := append([]interface{}{ctx, sql}, args...)
	mockArgs := m.Called(callArgs...)
	return mockArgs.Get(0).(pgx.Rows), mockArgs.Error(1)
}

func (m *MockDB) Begin(ctx context.Context) (pgx.Tx, error) {
	mockArgs := m.Called(ctx)
	return mockArgs.Get(0).(pgx.Tx), mockArgs.Error(1)
}

type MockRow struct {
	mock.Mock
}

func (m *MockRow) Scan(dest ...interface{}) error {
	mockArgs := m.Called(dest...)
	return mockArgs.Error(0)
}

type MockRows struct {
	mock.Mock
	closed bool
}

func (m *MockRows) Next() bool {
	mockArgs := m.Called()
	return mockArgs.Bool(0)
}

func (m *MockRows) Scan(dest ...interface{}) error {
	mockArgs := m.Called(dest...)
	return mockArgs.Error(0)
}

func (m *MockRows) Close() {
	m.closed = true
}

func (m *MockRows) Err() error {
	return nil
}

func (m *MockRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("")
}

func (m *MockRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}

func (m *MockRows) Values() ([]interface{}, error) {
	return nil, nil
}

func (m *MockRows) RawValues() [][]byte {
	return nil
}

func (m *MockRows) Conn() *pgx.Conn {
	return nil
}

// anyArgs builds a mock.Anything matcher list of the given length, for
// expectations on calls with long positional parameter lists.
func anyArgs(n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = mock.Anything
	}
	return out
}

// recordingSender captures the last OTP code instead of sending SMS.
type recordingSender struct {
	lastPhone string
	lastCode  string
}

func (s *recordingSender) Send(_ context.Context, phone, code string) error {
	s.lastPhone = phone
	s.lastCode = code
	return nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestCrypto(t *testing.T) *crypto.CryptoService {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("Failed to generate random data: %v", err)
	}
	return crypto.NewCryptoService(key)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

// =====================
// Reference routing
// =====================

func TestSubmissionTableForReference(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		wantTable string
		wantType  string
		wantOK    bool
	}{
		{"complaint", "CMP-20260830-012345", "complaints", "complaint", true},
		{"rti", "RTI-20260830-000001", "rti_requests", "rti", true},
		{"traffic", "TRF-20260830-999999", "traffic_violations", "traffic_violation", true},
		{"unknown prefix", "ZZZ-20260830-000001", "", "", false},
		{"missing suffix", "CMP-20260830", "", "", false},
		{"injection attempt", "CMP-20260830-000001; DROP TABLE complaints", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, submissionType, ok := submissionTableForReference(tt.reference)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTable, table)
			assert.Equal(t, tt.wantType, submissionType)
		})
	}
}

// =====================
// OTP Handler Tests
// =====================

type OTPHandlerTestSuite struct {
	suite.Suite
	app    *fiber.App
	sender *recordingSender
}

func (suite *OTPHandlerTestSuite) SetupTest() {
	rdb := newTestRedis(suite.T())
	suite.sender = &recordingSender{}
	otpSvc := services.NewOTPService(rdb, newTestCrypto(suite.T()), suite.sender, services.OTPConfig{
		TTL:            5 * time.Minute,
		ResendCooldown: time.Minute,
		MaxAttempts:    3,
		TokenTTL:       15 * time.Minute,
	})
	handler := NewOTPHandler(otpSvc)

	suite.app = fiber.New()
	suite.app.Post("/otp/request", handler.RequestOTP)
	suite.app.Post("/otp/verify", handler.VerifyOTP)
}

func (suite *OTPHandlerTestSuite) TestRequestAndVerify() {
	status, body := doJSON(suite.T(), suite.app, "POST", "/otp/request", fiber.Map{"phone": "9876543210"})
	suite.Equal(200, status)
	suite.Equal("******3210", body["phone"])
	suite.NotEmpty(suite.sender.lastCode)
	suite.Equal("+919876543210", suite.sender.lastPhone)

	status, body = doJSON(suite.T(), suite.app, "POST", "/otp/verify", fiber.Map{
		"phone": "9876543210",
		"code":  suite.sender.lastCode,
	})
	suite.Equal(200, status)
	suite.NotEmpty(body["verification_token"])
}

func (suite *OTPHandlerTestSuite) TestResendCooldown() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/otp/request", fiber.Map{"phone": "9876543210"})
	suite.Equal(200, status)

	status, body := doJSON(suite.T(), suite.app, "POST", "/otp/request", fiber.Map{"phone": "9876543210"})
	suite.Equal(429, status)
	suite.Contains(body["error"], "wait")
}

func (suite *OTPHandlerTestSuite) TestWrongCode() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/otp/request", fiber.Map{"phone": "9876543210"})
	suite.Equal(200, status)

	status, _ = doJSON(suite.T(), suite.app, "POST", "/otp/verify", fiber.Map{
		"phone": "9876543210",
		"code":  "000000",
	})
	suite.Equal(401, status)
}

func (suite *OTPHandlerTestSuite) TestVerifyWithoutRequest() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/otp/verify", fiber.Map{
		"phone": "9123456789",
		"code":  "123456",
	})
	suite.Equal(410, status)
}

func (suite *OTPHandlerTestSuite) TestMissingFields() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/otp/request", fiber.Map{})
	suite.Equal(400, status)

	status, _ = doJSON(suite.T(), suite.app, "POST", "/otp/verify", fiber.Map{"phone": "9876543210"})
	suite.Equal(400, status)
}

func TestOTPHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(OTPHandlerTestSuite))
}

// =====================
// Submission Handler Tests
// =====================

type SubmissionHandlerTestSuite struct {
	suite.Suite
	app     *fiber.App
	mockDB  *MockDB
	sender  *recordingSender
	otpSvc  *services.OTPService
	hub     *websocket.Hub
	crypto  *crypto.CryptoService
	uploads *UploadHandler
}

func (suite *SubmissionHandlerTestSuite) SetupTest() {
	suite.mockDB = &MockDB{}
	suite.crypto = newTestCrypto(suite.T())
	suite.sender = &recordingSender{}
	rdb := newTestRedis(suite.T())
	suite.otpSvc = services.NewOTPService(rdb, suite.crypto, suite.sender, services.OTPConfig{
		TTL:            5 * time.Minute,
		ResendCooldown: time.Minute,
		MaxAttempts:    3,
		TokenTTL:       15 * time.Minute,
	})
	suite.hub = websocket.NewHub()

	storageDir := suite.T().TempDir()
	suite.uploads = NewUploadHandler(&config.Config{StorageDir: storageDir, MaxUploadBytes: 1024 * 1024})

	handler := NewSubmissionHandler(
		suite.mockDB,
		suite.crypto,
		suite.otpSvc,
		services.NewStationService(suite.mockDB),
		services.NewDocumentService(storageDir),
		suite.uploads,
		suite.hub,
	)

	suite.app = fiber.New()
	suite.app.Post("/complaints", handler.SubmitComplaint)
	suite.app.Post("/rti", handler.SubmitRTI)
	suite.app.Post("/traffic-violations", handler.SubmitTrafficViolation)
	suite.app.Get("/status/:reference", handler.GetStatus)
}

// verifiedToken walks the OTP flow and returns a consumable token.
func (suite *SubmissionHandlerTestSuite) verifiedToken(phone string) string {
	ctx := context.Background()
	_, err := suite.otpSvc.RequestCode(ctx, phone)
	suite.Require().NoError(err)
	token, err := suite.otpSvc.VerifyCode(ctx, phone, suite.sender.lastCode)
	suite.Require().NoError(err)
	return token
}

func (suite *SubmissionHandlerTestSuite) TestSubmitComplaint() {
	token := suite.verifiedToken("9876543210")

	// INSERT INTO complaints, then UPDATE ... document_path
	suite.mockDB.On("Exec", anyArgs(18)...).Return(int64(1), nil).Once()
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(1), nil).Once()

	status, body := doJSON(suite.T(), suite.app, "POST", "/complaints", fiber.Map{
		"verification_token": token,
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"incident_location":  "Main Road, Kakinada",
		"description":        "My bike was stolen from the market parking",
	})

	suite.Equal(201, status)
	suite.Equal("received", body["status"])
	suite.Equal(services.TypeTheft, body["complaint_type"])
	suite.Contains(body["applicable_laws"], "BNS 2023 Section 303")
	reference, _ := body["reference"].(string)
	suite.Regexp(`^CMP-\d{8}-\d{6}$`, reference)
	suite.Equal("/api/v1/documents/"+reference, body["document_url"])
	suite.mockDB.AssertExpectations(suite.T())
}

func (suite *SubmissionHandlerTestSuite) TestSubmitComplaintRespectsExplicitType() {
	token := suite.verifiedToken("9876543210")

	suite.mockDB.On("Exec", anyArgs(18)...).Return(int64(1), nil).Once()
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(1), nil).Once()

	status, body := doJSON(suite.T(), suite.app, "POST", "/complaints", fiber.Map{
		"verification_token": token,
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"incident_location":  "Main Road, Kakinada",
		"description":        "My bike was stolen from the market parking",
		"complaint_type":     services.TypeFraud,
	})

	suite.Equal(201, status)
	suite.Equal(services.TypeFraud, body["complaint_type"])
}

func (suite *SubmissionHandlerTestSuite) TestSubmitComplaintUnverifiedPhone() {
	status, body := doJSON(suite.T(), suite.app, "POST", "/complaints", fiber.Map{
		"verification_token": "bogus-token",
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"incident_location":  "Main Road",
		"description":        "Something happened",
	})
	suite.Equal(401, status)
	suite.Contains(body["error"], "not verified")
}

func (suite *SubmissionHandlerTestSuite) TestSubmitComplaintTokenBoundToPhone() {
	token := suite.verifiedToken("9876543210")

	status, _ := doJSON(suite.T(), suite.app, "POST", "/complaints", fiber.Map{
		"verification_token": token,
		"phone":              "9123456789",
		"name":               "Ravi Kumar",
		"incident_location":  "Main Road",
		"description":        "Something happened",
	})
	suite.Equal(401, status)
}

func (suite *SubmissionHandlerTestSuite) TestSubmitComplaintValidation() {
	tests := []struct {
		name string
		body fiber.Map
	}{
		{"missing name", fiber.Map{
			"verification_token": "t", "phone": "9876543210",
			"incident_location": "Main Road", "description": "desc",
		}},
		{"missing description", fiber.Map{
			"verification_token": "t", "phone": "9876543210",
			"name": "Ravi", "incident_location": "Main Road",
		}},
		{"bad aadhaar", fiber.Map{
			"verification_token": "t", "phone": "9876543210",
			"name": "Ravi", "incident_location": "Main Road",
			"description": "desc", "aadhaar_number": "1111",
		}},
		{"bad email", fiber.Map{
			"verification_token": "t", "phone": "9876543210",
			"name": "Ravi", "incident_location": "Main Road",
			"description": "desc", "email": "not-an-email",
		}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			status, _ := doJSON(suite.T(), suite.app, "POST", "/complaints", tt.body)
			suite.Equal(400, status)
		})
	}
}

func (suite *SubmissionHandlerTestSuite) TestSubmitRTI() {
	token := suite.verifiedToken("9876543210")

	suite.mockDB.On("Exec", anyArgs(12)...).Return(int64(1), nil).Once()
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(1), nil).Once()

	status, body := doJSON(suite.T(), suite.app, "POST", "/rti", fiber.Map{
		"verification_token": token,
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"department":         "Municipal Corporation",
		"information_sought": "Copies of road repair contracts for ward 12",
	})

	suite.Equal(201, status)
	reference, _ := body["reference"].(string)
	suite.Regexp(`^RTI-\d{8}-\d{6}$`, reference)
	suite.mockDB.AssertExpectations(suite.T())
}

func (suite *SubmissionHandlerTestSuite) TestSubmitRTIMissingDepartment() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/rti", fiber.Map{
		"verification_token": "t",
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"information_sought": "Contract copies",
	})
	suite.Equal(400, status)
}

func (suite *SubmissionHandlerTestSuite) TestSubmitTrafficViolation() {
	token := suite.verifiedToken("9876543210")

	suite.mockDB.On("Exec", anyArgs(13)...).Return(int64(1), nil).Once()
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(1), nil).Once()

	status, body := doJSON(suite.T(), suite.app, "POST", "/traffic-violations", fiber.Map{
		"verification_token": token,
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"vehicle_number":     "AP 05 BC 1234",
		"violation_type":     "Illegal Parking",
		"location":           "Bhanugudi Junction",
	})

	suite.Equal(201, status)
	suite.Equal("AP05BC1234", body["vehicle_number"])
	reference, _ := body["reference"].(string)
	suite.Regexp(`^TRF-\d{8}-\d{6}$`, reference)
	suite.mockDB.AssertExpectations(suite.T())
}

func (suite *SubmissionHandlerTestSuite) TestSubmitTrafficViolationBadPlate() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/traffic-violations", fiber.Map{
		"verification_token": "t",
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"vehicle_number":     "NOT A PLATE",
		"violation_type":     "Illegal Parking",
	})
	suite.Equal(400, status)
}

func (suite *SubmissionHandlerTestSuite) TestSubmitTrafficViolationUnknownType() {
	status, body := doJSON(suite.T(), suite.app, "POST", "/traffic-violations", fiber.Map{
		"verification_token": "t",
		"phone":              "9876543210",
		"name":               "Ravi Kumar",
		"vehicle_number":     "AP05BC1234",
		"violation_type":     "Jaywalking",
	})
	suite.Equal(400, status)
	suite.NotNil(body["allowed_types"])
}

func (suite *SubmissionHandlerTestSuite) TestGetStatus() {
	row := &MockRow{}
	row.On("Scan", anyArgs(3)...).Run(func(args mock.Arguments) {
		*(args.Get(0).(*string)) = "under_review"
		*(args.Get(1).(*time.Time)) = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
		*(args.Get(2).(*time.Time)) = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}).Return(nil)
	suite.mockDB.On("QueryRow", anyArgs(3)...).Return(row)

	status, body := doJSON(suite.T(), suite.app, "GET", "/status/CMP-20260830-000001", nil)
	suite.Equal(200, status)
	suite.Equal("under_review", body["status"])
	suite.Equal("complaint", body["type"])
}

func (suite *SubmissionHandlerTestSuite) TestGetStatusMalformedReference() {
	status, _ := doJSON(suite.T(), suite.app, "GET", "/status/nonsense", nil)
	suite.Equal(400, status)
}

func TestSubmissionHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(SubmissionHandlerTestSuite))
}

// =====================
// Upload Handler Tests
// =====================

func newUploadApp(t *testing.T, maxBytes int) (*fiber.App, *UploadHandler) {
	t.Helper()
	handler := NewUploadHandler(&config.Config{StorageDir: t.TempDir(), MaxUploadBytes: maxBytes})
	app := fiber.New()
	app.Post("/uploads", handler.UploadPhoto)
	return app, handler
}

func multipartPhoto(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("photo", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadPhoto(t *testing.T) {
	app, handler := newUploadApp(t, 1024*1024)

	body, contentType := multipartPhoto(t, "aadhaar.jpg", []byte("fake jpeg bytes"))
	req := httptest.NewRequest("POST", "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, 201, resp.StatusCode)

	var decoded map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	uploadID := decoded["upload_id"]
	assert.Regexp(t, uploadIDRe, uploadID)

	path, err := handler.resolveUpload(uploadID)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, uploadID))
}

func TestUploadPhotoRejectsExtension(t *testing.T) {
	app, _ := newUploadApp(t, 1024*1024)

	body, contentType := multipartPhoto(t, "malware.exe", []byte("nope"))
	req := httptest.NewRequest("POST", "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestUploadPhotoRejectsOversized(t *testing.T) {
	app, _ := newUploadApp(t, 10)

	body, contentType := multipartPhoto(t, "big.png", bytes.Repeat([]byte("x"), 100))
	req := httptest.NewRequest("POST", "/uploads", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, 413, resp.StatusCode)
}

func TestResolveUpload(t *testing.T) {
	_, handler := newUploadApp(t, 1024)

	path, err := handler.resolveUpload("")
	assert.NoError(t, err)
	assert.Empty(t, path)

	_, err = handler.resolveUpload("../../etc/passwd")
	assert.Error(t, err)

	_, err = handler.resolveUpload(uuid.New().String() + ".jpg")
	assert.Error(t, err, "unknown ids must not resolve")
}

// =====================
// Reviewer Handler Tests
// =====================

type ReviewerHandlerTestSuite struct {
	suite.Suite
	app    *fiber.App
	mockDB *MockDB
	hub    *websocket.Hub
	crypto *crypto.CryptoService
}

func (suite *ReviewerHandlerTestSuite) SetupTest() {
	suite.mockDB = &MockDB{}
	suite.crypto = newTestCrypto(suite.T())
	suite.hub = websocket.NewHub()
	handler := NewReviewerHandler(suite.mockDB, suite.crypto, suite.hub)

	suite.app = fiber.New()
	suite.app.Get("/reviewer/submissions", handler.ListSubmissions)
	suite.app.Patch("/reviewer/submissions/:reference/status", handler.UpdateStatus)
}

func (suite *ReviewerHandlerTestSuite) TestListSubmissions() {
	rows := &MockRows{}
	rows.On("Next").Return(true).Once()
	rows.On("Next").Return(false).Once()
	rows.On("Scan", anyArgs(5)...).Run(func(args mock.Arguments) {
		*(args.Get(0).(*string)) = "CMP-20260830-000001"
		*(args.Get(1).(*string)) = services.TypeTheft
		*(args.Get(2).(*string)) = "received"
		*(args.Get(3).(*time.Time)) = time.Now()
		*(args.Get(4).(*time.Time)) = time.Now()
	}).Return(nil).Once()
	suite.mockDB.On("Query", mock.Anything, mock.Anything).Return(rows, nil)

	status, body := doJSON(suite.T(), suite.app, "GET", "/reviewer/submissions?type=complaint", nil)
	suite.Equal(200, status)
	submissions, ok := body["submissions"].([]interface{})
	suite.True(ok)
	suite.Len(submissions, 1)
	suite.True(rows.closed)
}

func (suite *ReviewerHandlerTestSuite) TestListSubmissionsUnknownType() {
	status, _ := doJSON(suite.T(), suite.app, "GET", "/reviewer/submissions?type=parking", nil)
	suite.Equal(400, status)
}

func (suite *ReviewerHandlerTestSuite) TestUpdateStatus() {
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(1), nil).Once()

	status, body := doJSON(suite.T(), suite.app, "PATCH", "/reviewer/submissions/CMP-20260830-000001/status", fiber.Map{
		"status": "forwarded",
	})
	suite.Equal(200, status)
	suite.Equal("forwarded", body["status"])
	suite.mockDB.AssertExpectations(suite.T())
}

func (suite *ReviewerHandlerTestSuite) TestUpdateStatusUnknownReference() {
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(0), nil).Once()

	status, _ := doJSON(suite.T(), suite.app, "PATCH", "/reviewer/submissions/CMP-20260830-999999/status", fiber.Map{
		"status": "closed",
	})
	suite.Equal(404, status)
}

func (suite *ReviewerHandlerTestSuite) TestUpdateStatusInvalidStatus() {
	status, _ := doJSON(suite.T(), suite.app, "PATCH", "/reviewer/submissions/CMP-20260830-000001/status", fiber.Map{
		"status": "received",
	})
	suite.Equal(400, status)
}

func TestReviewerHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ReviewerHandlerTestSuite))
}

// =====================
// AuthHandler Tests
// =====================

type AuthHandlerTestSuite struct {
	suite.Suite
	handler *AuthHandler
	app     *fiber.App
	mockDB  *MockDB
	rdb     *redis.Client
	crypto  *crypto.CryptoService
	cfg     *config.Config
	userID  uuid.UUID
}

func (suite *AuthHandlerTestSuite) SetupTest() {
	suite.mockDB = &MockDB{}
	suite.rdb = newTestRedis(suite.T())
	suite.crypto = newTestCrypto(suite.T())

	jwtSecret := make([]byte, 64)
	if _, err := rand.Read(jwtSecret); err != nil {
		suite.T().Fatalf("Failed to generate random data: %v", err)
	}

	suite.cfg = &config.Config{
		JWTSecret:       jwtSecret,
		SessionDuration: 8 * time.Hour,
	}

	suite.handler = NewAuthHandler(suite.mockDB, suite.rdb, suite.crypto, suite.cfg)
	suite.userID = uuid.New()

	suite.app = fiber.New()
	suite.app.Post("/reviewer/login", suite.handler.Login)
	suite.app.Post("/reviewer/login/mfa", suite.handler.VerifyMFALogin)
}

// loginRow returns a MockRow shaped like the login SELECT.
func (suite *AuthHandlerTestSuite) loginRow(passwordHash string, failedAttempts int, lockedUntil *time.Time, mfaEnabled bool) *MockRow {
	row := &MockRow{}
	row.On("Scan", anyArgs(6)...).Run(func(args mock.Arguments) {
		*(args.Get(0).(*uuid.UUID)) = suite.userID
		*(args.Get(1).(*string)) = passwordHash
		*(args.Get(2).(*int)) = failedAttempts
		*(args.Get(3).(**time.Time)) = lockedUntil
		*(args.Get(4).(*bool)) = mfaEnabled
		*(args.Get(5).(*[]byte)) = nil
	}).Return(nil)
	return row
}

func (suite *AuthHandlerTestSuite) TestNewAuthHandler() {
	handler := NewAuthHandler(suite.mockDB, suite.rdb, suite.crypto, suite.cfg)
	suite.NotNil(handler)
	suite.Equal(suite.mockDB, handler.db)
	suite.Equal(suite.crypto, handler.crypto)
	suite.Equal(suite.cfg, handler.config)
}

func (suite *AuthHandlerTestSuite) TestLoginSuccess() {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	passwordHash := crypto.HashPassword("CorrectHorse9!", salt)

	suite.mockDB.On("QueryRow", anyArgs(3)...).Return(suite.loginRow(passwordHash, 0, nil, false))
	// reset attempts + audit insert
	suite.mockDB.On("Exec", anyArgs(3)...).Return(int64(1), nil)
	suite.mockDB.On("Exec", anyArgs(6)...).Return(int64(1), nil)

	status, body := doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email":    "reviewer@civicaid.example",
		"password": "CorrectHorse9!",
	})

	suite.Equal(200, status)
	token, _ := body["token"].(string)
	suite.NotEmpty(token)

	// Session must be live so the JWT middleware accepts the token.
	val, err := suite.rdb.Get(context.Background(), middleware.SessionKey(token)).Result()
	suite.NoError(err)
	suite.Equal(suite.userID.String(), val)
}

func (suite *AuthHandlerTestSuite) TestLoginWrongPassword() {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	passwordHash := crypto.HashPassword("CorrectHorse9!", salt)

	suite.mockDB.On("QueryRow", anyArgs(3)...).Return(suite.loginRow(passwordHash, 0, nil, false))
	// failed attempts update + audit insert
	suite.mockDB.On("Exec", anyArgs(4)...).Return(int64(1), nil)
	suite.mockDB.On("Exec", anyArgs(6)...).Return(int64(1), nil)

	status, body := doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email":    "reviewer@civicaid.example",
		"password": "WrongPassword1!",
	})

	suite.Equal(401, status)
	suite.Equal("Invalid credentials", body["error"])
}

func (suite *AuthHandlerTestSuite) TestLoginLockedAccount() {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	passwordHash := crypto.HashPassword("CorrectHorse9!", salt)
	lockedUntil := time.Now().Add(10 * time.Minute)

	suite.mockDB.On("QueryRow", anyArgs(3)...).Return(suite.loginRow(passwordHash, 5, &lockedUntil, false))

	status, body := doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email":    "reviewer@civicaid.example",
		"password": "CorrectHorse9!",
	})

	suite.Equal(423, status)
	suite.NotNil(body["retry_after_seconds"])
}

func (suite *AuthHandlerTestSuite) TestLoginMFARequired() {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	passwordHash := crypto.HashPassword("CorrectHorse9!", salt)

	suite.mockDB.On("QueryRow", anyArgs(3)...).Return(suite.loginRow(passwordHash, 0, nil, true))

	status, body := doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email":    "reviewer@civicaid.example",
		"password": "CorrectHorse9!",
	})

	suite.Equal(200, status)
	suite.Equal(true, body["mfa_required"])
	mfaToken, _ := body["mfa_session_token"].(string)
	suite.NotEmpty(mfaToken)

	// The pending token lives in Redis until the second step.
	val, err := suite.rdb.Get(context.Background(), mfaPendingKeyPrefix+mfaToken).Result()
	suite.NoError(err)
	suite.Equal(suite.userID.String(), val)
}

func (suite *AuthHandlerTestSuite) TestLoginUnknownEmail() {
	row := &MockRow{}
	row.On("Scan", anyArgs(6)...).Return(pgx.ErrNoRows)
	suite.mockDB.On("QueryRow", anyArgs(3)...).Return(row)

	status, _ := doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email":    "nobody@civicaid.example",
		"password": "whatever123!",
	})
	suite.Equal(401, status)
}

func (suite *AuthHandlerTestSuite) TestLoginRejectsBadInput() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email": "not-an-email", "password": "x",
	})
	suite.Equal(400, status)

	status, _ = doJSON(suite.T(), suite.app, "POST", "/reviewer/login", fiber.Map{
		"email": "a@b.example",
	})
	suite.Equal(400, status)
}

func (suite *AuthHandlerTestSuite) TestVerifyMFALoginExpiredSession() {
	status, _ := doJSON(suite.T(), suite.app, "POST", "/reviewer/login/mfa", fiber.Map{
		"mfa_session_token": "mfa_session_deadbeef",
		"code":              "123456",
	})
	suite.Equal(401, status)
}

func TestAuthHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}
