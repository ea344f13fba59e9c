package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/http/handlers/common"
	"github.com/ignatzorin/ecocoin-market/internal/models"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
	"github.com/ignatzorin/ecocoin-market/internal/service"
)

// Разрешённые типы изображений по магическим байтам
var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type ListingHandler struct {
	listings *service.ListingService
}

func NewListingHandler(listings *service.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// CreateListing POST /api/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	ownerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.CreateListingRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	listing, err := h.listings.CreateListing(c.Request.Context(), ownerID, service.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
		Price:       req.Price,
		Photos:      req.Photos,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// ListActive GET /api/listings
func (h *ListingHandler) ListActive(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	listings, err := h.listings.ListActive(c.Request.Context(), limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Data:   listings,
		Total:  len(listings),
		Limit:  limit,
		Offset: offset,
	})
}

// ListMine GET /api/listings/mine
func (h *ListingHandler) ListMine(c *gin.Context) {
	ownerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	listings, err := h.listings.ListMine(c.Request.Context(), ownerID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listings)
}

// GetListing GET /api/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	listing, err := h.listings.GetListing(c.Request.Context(), listingID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}

// SuggestPrice POST /api/listings/suggest-price
func (h *ListingHandler) SuggestPrice(c *gin.Context) {
	var req dto.SuggestPriceRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	suggestion, err := h.listings.SuggestPrice(c.Request.Context(), models.ValuationRequest{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

// UploadPhoto POST /api/listings/:id/photos (multipart, поле file)
func (h *ListingHandler) UploadPhoto(c *gin.Context) {
	ownerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, apperror.New(apperror.ErrCodeBadRequest, "поле file обязательно"))
		return
	}
	if file.Size == 0 {
		common.RespondError(c, apperror.New(apperror.ErrCodeBadRequest, "файл не может быть пустым"))
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл"))
		return
	}
	defer src.Close()

	if err := checkPhoto(src, file.Filename); err != nil {
		common.RespondError(c, err)
		return
	}

	url, err := h.listings.UploadPhoto(c.Request.Context(), ownerID, listingID, file.Filename, src)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.PhotoResponse{URL: url})
}

// checkPhoto проверяет тип файла по магическим байтам и соответствие расширения.
// После проверки позиция чтения возвращается в начало.
func checkPhoto(src io.ReadSeeker, fileName string) error {
	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return apperror.New(apperror.ErrCodeValidation, "не удалось определить тип файла. Разрешены только изображения")
	}
	if !allowedPhotoTypes[kind.MIME.Value] {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неподдерживаемый тип файла (%s)", kind.MIME.Value))
	}

	// .jpg и .jpeg - это одно и то же
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext != kind.Extension {
		return apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("расширение файла (.%s) не соответствует реальному типу (.%s)", ext, kind.Extension))
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сбросить позицию файла")
	}
	return nil
}
