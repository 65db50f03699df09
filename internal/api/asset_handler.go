package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"cvCanvas/internal/api/middleware"
	"cvCanvas/internal/database"
	"cvCanvas/internal/storage"
)

const (
	defaultMaxAssetBytes    = 5 * 1024 * 1024
	defaultMaxAssetsPerUser = 50
	defaultMaxUploadsPerDay = 100
	assetViewTTL            = 15 * time.Minute
)

// 允许的图片类型及其扩展名。
var assetExtByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// AssetStorage 是资产接口需要的对象存储能力。
type AssetStorage interface {
	UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, ttl time.Duration, filename string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// Scanner 对上传内容做病毒扫描，发现威胁时返回 errInfected。
type Scanner interface {
	Scan(r io.Reader) error
}

var errInfected = errors.New("malicious file detected")

type clamdScanner struct {
	client *clamd.Clamd
}

// NewClamdScanner 连接 clamd；addr 为空时返回 nil，表示不扫描。
func NewClamdScanner(addr string) Scanner {
	if addr == "" {
		return nil
	}
	return clamdScanner{client: clamd.NewClamd(addr)}
}

func (s clamdScanner) Scan(r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range results {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("%w: %s", errInfected, result.Description)
		}
	}
	return nil
}

// AssetHandler 负责头像等图片资产的上传与访问。
type AssetHandler struct {
	store            assetStore
	storage          AssetStorage
	scanner          Scanner
	counter          redisRateCounter
	logger           *slog.Logger
	maxBytes         int64
	maxAssetsPerUser int
	maxUploadsPerDay int
}

// NewAssetHandler 返回 AssetHandler 实例。counter 为 nil 时不做每日上传限流。
func NewAssetHandler(db *gorm.DB, storageClient AssetStorage, scanner Scanner, counter redisRateCounter, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		store:            newGormAssetStore(db),
		storage:          storageClient,
		scanner:          scanner,
		counter:          counter,
		logger:           logger,
		maxBytes:         defaultMaxAssetBytes,
		maxAssetsPerUser: defaultMaxAssetsPerUser,
		maxUploadsPerDay: defaultMaxUploadsPerDay,
	}
}

// POST /v1/assets/upload
// 上传前校验大小、数量、真实类型并扫描病毒。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size <= 0 || file.Size > h.maxBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	count, err := h.store.Count(ctx, userID)
	if err != nil {
		log.Error("count assets failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if count >= int64(h.maxAssetsPerUser) {
		Forbidden(c, "asset limit reached")
		return
	}
	if h.counter != nil {
		key := dailyUploadKey(userID, time.Now())
		if n, err := incrWithTTL(ctx, h.counter, key, 24*time.Hour); err == nil && n > int64(h.maxUploadsPerDay) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "upload limit exceeded"})
			return
		}
	}

	contentType, err := sniffContentType(file.Open)
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	ext, allowed := assetExtByMIME[contentType]
	if !allowed {
		BadRequest(c, "unsupported image type")
		return
	}

	if h.scanner != nil {
		reader, err := file.Open()
		if err != nil {
			Internal(c, "failed to open file")
			return
		}
		err = h.scanner.Scan(reader)
		reader.Close()
		if errors.Is(err, errInfected) {
			log.Warn("upload rejected by virus scan", slog.Any("error", err))
			BadRequest(c, "malicious file detected")
			return
		}
		if err != nil {
			log.Error("scan file failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer reader.Close()

	objectKey := storage.AssetKey(userID, uuid.NewString(), ext)
	if _, err := h.storage.UploadFile(ctx, objectKey, reader, file.Size, contentType); err != nil {
		log.Error("upload file failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}
	if err := h.store.Create(ctx, database.Asset{
		UserID:      userID,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Size:        file.Size,
	}); err != nil {
		log.Error("record asset failed", slog.Any("error", err))
		_ = h.storage.DeleteObject(ctx, objectKey)
		Internal(c, "failed to record asset")
		return
	}

	log.Info("asset uploaded", slog.String("object_key", objectKey))
	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// GET /v1/assets
func (h *AssetHandler) ListAssets(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "60"))
	if err != nil || limit <= 0 {
		limit = 60
	}
	limit = min(limit, 200)

	assets, err := h.store.List(c.Request.Context(), userID, limit)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list assets failed", slog.Any("error", err))
		Internal(c, "failed to list assets")
		return
	}

	items := make([]gin.H, 0, len(assets))
	for _, a := range assets {
		url, err := h.storage.GeneratePresignedURL(c.Request.Context(), a.ObjectKey, assetViewTTL, "")
		if err != nil {
			middleware.LoggerFromContext(c).Error("generate asset url failed", slog.String("object_key", a.ObjectKey), slog.Any("error", err))
			continue
		}
		items = append(items, gin.H{
			"objectKey":  a.ObjectKey,
			"previewUrl": url,
			"size":       a.Size,
			"createdAt":  a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /v1/assets/view?key=
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}
	if !storage.IsAssetKeyOf(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectKey, assetViewTTL, "")
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate presigned url failed", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DELETE /v1/assets?key=
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if !storage.IsAssetKeyOf(userID, objectKey) {
		Forbidden(c, "access denied")
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Delete(ctx, userID, objectKey); err != nil {
		if errors.Is(err, errAssetNotFound) {
			NotFound(c, "asset not found")
			return
		}
		middleware.LoggerFromContext(c).Error("delete asset failed", slog.Any("error", err))
		Internal(c, "failed to delete asset")
		return
	}
	if err := h.storage.DeleteObject(ctx, objectKey); err != nil {
		middleware.LoggerFromContext(c).Warn("delete asset object failed", slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}

// sniffContentType 根据文件头判断真实类型，不信任客户端声明的 Content-Type。
func sniffContentType(open func() (multipart.File, error)) (string, error) {
	f, err := open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
