package certificate

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/apperr"
	"github.com/nao1215/hogwartsedx/pkg/metrics"
	"github.com/nao1215/hogwartsedx/pkg/objectstore"
)

// ダウンロード処理の段階。メトリクスのstageラベルに使う。
const (
	stageLookup        = "lookup"
	stageKeyResolution = "key_resolution"
	stageSigning       = "signing"
	stageRedirect      = "redirect"
)

// signingErrorMessage は署名付きURLの発行失敗時に返すメッセージ。
const signingErrorMessage = "Error generating signed URL"

// Handler は証明書APIのHTTPハンドラ。エラーは {"msg": ...} で返す。
type Handler struct {
	locator *Locator
	signer  objectstore.Signer
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewHandler は新しいHandlerを生成する。ttlは署名付きURLの有効期間。
func NewHandler(locator *Locator, signer objectstore.Signer, ttl time.Duration, m *metrics.Metrics) *Handler {
	return &Handler{locator: locator, signer: signer, ttl: ttl, metrics: m}
}

// RegisterRoutes は証明書APIを登録する。いずれも認証不要。
func (h *Handler) RegisterRoutes(public *gin.RouterGroup) {
	certificates := public.Group("/certificates")
	{
		certificates.GET("", h.handleList())
		certificates.GET("/:uniqueId", h.handleGet())
		certificates.GET("/:uniqueId/download", h.handleDownload())
	}
}

// certificateResponse は証明書のJSONレスポンス構造。内部IDと保存パスは含めない。
type certificateResponse struct {
	UniqueID string        `json:"uniqueId"`
	User     ownerResponse `json:"user"`
	IssuedAt string        `json:"issuedAt"`
}

// ownerResponse は証明書の所有者。
type ownerResponse struct {
	Name string `json:"name"`
}

func toCertificateResponse(c store.Certificate) certificateResponse {
	return certificateResponse{
		UniqueID: c.UniqueID,
		User:     ownerResponse{Name: c.UserName},
		IssuedAt: c.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// respondError は分類済みエラーをステータスコードとメッセージに変換して返す。
func respondError(c *gin.Context, err error, fallback string) {
	if apperr.HTTPStatus(err) == http.StatusInternalServerError {
		log.Printf("[Certificate] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"msg": apperr.MessageOf(err, fallback)})
}

// handleList は userName / uniqueId / date で絞り込んだ証明書一覧を返すハンドラ。
func (h *Handler) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		certificates, err := h.locator.List(c.Request.Context(), Filter{
			UserName: c.Query("userName"),
			UniqueID: c.Query("uniqueId"),
			Date:     c.Query("date"),
		})
		if err != nil {
			respondError(c, err, "Internal server error")
			return
		}

		responses := make([]certificateResponse, 0, len(certificates))
		for _, cert := range certificates {
			responses = append(responses, toCertificateResponse(cert))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGet は公開IDで証明書を1件返すハンドラ。
func (h *Handler) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		cert, err := h.locator.FindByPublicID(c.Request.Context(), c.Param("uniqueId"))
		if err != nil {
			respondError(c, err, "Internal server error")
			return
		}
		c.JSON(http.StatusOK, toCertificateResponse(cert))
	}
}

// handleDownload は証明書ファイルの署名付きURLへリダイレクトするハンドラ。
// 検索 → キー取り出し → 署名 → リダイレクトの順に進み、どの段階の失敗もその場で返す。
func (h *Handler) handleDownload() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		cert, err := h.locator.FindByPublicID(ctx, c.Param("uniqueId"))
		if err != nil {
			h.record(stageLookup, metrics.ResultFailed)
			respondError(c, err, "Internal server error")
			return
		}

		key, err := objectstore.ResolveKey(cert.FilePath, h.signer.Bucket())
		if err != nil {
			h.record(stageKeyResolution, metrics.ResultFailed)
			log.Printf("[Certificate] キーの取り出しに失敗 (unique_id=%s): %v", cert.UniqueID, err)
			respondError(c, err, objectstore.KeyExtractionMessage)
			return
		}

		signedURL, err := h.signer.Issue(ctx, key, h.ttl)
		if err != nil {
			h.record(stageSigning, metrics.ResultFailed)
			log.Printf("[Certificate] 署名付きURLの発行に失敗 (unique_id=%s): %v", cert.UniqueID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"msg": signingErrorMessage})
			return
		}

		h.record(stageRedirect, metrics.ResultOK)
		c.Redirect(http.StatusFound, signedURL)
	}
}

func (h *Handler) record(stage, result string) {
	h.metrics.CertificateDownloads.WithLabelValues(stage, result).Inc()
}
