package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/config"
	"github.com/noah-isme/coursetrack-api/internal/handler"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/repository"
	"github.com/noah-isme/coursetrack-api/internal/router"
	"github.com/noah-isme/coursetrack-api/internal/service"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Details map[string]interface{} `json:"details"`
	Meta    map[string]interface{} `json:"meta"`
}

// memoryStorage records uploads instead of sending them anywhere.
type memoryStorage struct {
	mu    sync.Mutex
	calls int
	names []string
}

func (m *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.names = append(m.names, name)
	return "https://files.example.com/" + name, nil
}

func (m *memoryStorage) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type testApp struct {
	app      *fiber.App
	db       *gorm.DB
	storage  *memoryStorage
	progress service.ProgressService
	batches  service.BatchService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	cfg := config.Config{AppName: "coursetrack-test", AppEnv: "test", JWTSecret: testSecret, JWTTTL: time.Hour}

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	records := repository.NewProgressRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)

	storage := &memoryStorage{}
	events := service.NewProgressEventBus(nil, nil, "", logger)
	uploads := service.NewUploadService(storage, repository.NewUploadRepository(db), service.DefaultUploadMaxBytes, logger)
	progress := service.NewProgressService(records, events, validate, logger)
	batches := service.NewBatchService(service.BatchServiceDeps{
		Batches:   batchRepo,
		Courses:   courses,
		Users:     users,
		Records:   records,
		Progress:  progress,
		Events:    events,
		Activity:  activity,
		Validator: validate,
		Logger:    logger,
	})

	app := fiber.New(fiber.Config{BodyLimit: 4 * 1024 * 1024})
	router.Register(app, cfg, router.Dependencies{
		CourseHandler:   handler.NewCourseHandler(service.NewCourseService(courses, users, progress, uploads, validate, nil, logger), logger),
		ProgressHandler: handler.NewProgressHandler(progress, logger),
		BatchHandler:    handler.NewBatchHandler(batches, logger),
		UserHandler:     handler.NewUserHandler(service.NewUserService(users, events, validate, logger), logger),
		AuthHandler:     handler.NewAuthHandler(service.NewAuthService(users, cfg.JWTSecret, cfg.JWTTTL, validate, logger), logger),
		OverviewHandler: handler.NewOverviewHandler(service.NewOverviewService(courses, users, batchRepo), logger),
		ActivityHandler: handler.NewActivityHandler(activity, logger),
		UploadHandler:   handler.NewUploadHandler(uploads, logger),
		HealthProbes: map[string]handler.HealthProbe{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
		DisableRateLimit: true,
	})

	return &testApp{app: app, db: db, storage: storage, progress: progress, batches: batches}
}

func (a *testApp) user(t *testing.T, name, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, a.db.Create(&user).Error)
	return user
}

// course stores a course with one module per entry of sectionsPerModule.
func (a *testApp) course(t *testing.T, code string, sectionsPerModule ...int) models.Course {
	t.Helper()
	course := models.Course{
		CourseCode:        code,
		CourseName:        "Course " + code,
		CourseDescription: "description",
		CourseDuration:    "6 weeks",
	}
	for m, count := range sectionsPerModule {
		module := models.Module{Title: fmt.Sprintf("Module %d", m+1), Position: m}
		for s := 0; s < count; s++ {
			module.Sections = append(module.Sections, models.Section{
				Position:                  s,
				SectionName:               fmt.Sprintf("Section %d.%d", m+1, s+1),
				LearningMaterialNotes:     "notes",
				CodeChallengeInstructions: "instructions",
			})
		}
		course.Modules = append(course.Modules, module)
	}
	require.NoError(t, repository.NewCourseRepository(a.db).Create(context.Background(), &course))
	return course
}

func token(t *testing.T, user models.User) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// call sends a JSON request and decodes the envelope. A zero user sends no token.
func (a *testApp) call(t *testing.T, method, path string, caller models.User, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller.ID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, caller))
	}
	return a.send(t, req)
}

func (a *testApp) upload(t *testing.T, path string, caller models.User, filename string, content []byte) (int, envelope) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, caller))
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}
