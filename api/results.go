package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/micromeda/micromeda-server/common"
	"github.com/micromeda/micromeda-server/config"
	"github.com/micromeda/micromeda-server/micromeda"
	"github.com/micromeda/micromeda-server/service"
)

func init() {
	root := GetRoot()

	root.POST("upload", Upload)
	root.GET("genome_properties_tree", GetGenomePropertiesTree)
	root.GET("fasta/:property_id/:step_number", GetFasta)
	root.GET("uploads/:result_key", GetUpload)
}

// Upload stores the results of a micromeda file and responds with the key
// under which they are cached.
func Upload(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			respondWithErrorMessage(ctx, http.StatusBadRequest, "%v", common.ErrNoFile)
			return
		}
		respondWithErrorMessage(ctx, http.StatusBadRequest, "invalid upload: %v", err)
		return
	}

	fileName := filepath.Base(header.Filename)
	if header.Filename == "" || fileName == "." || fileName == string(filepath.Separator) {
		respondWithErrorMessage(ctx, http.StatusBadRequest, "%v", common.ErrEmptyFileName)
		return
	}
	if !micromeda.AllowedFile(fileName) {
		respondWithErrorMessage(ctx, http.StatusBadRequest, "%v: %s", common.ErrFileNotAllowed, fileName)
		return
	}
	if header.Size > config.GetInt64("MAX_UPLOAD_BYTES") {
		respondWithErrorMessage(ctx, http.StatusRequestEntityTooLarge,
			"%s is larger than %d bytes", fileName, config.GetInt64("MAX_UPLOAD_BYTES"))
		return
	}

	folder := config.GetString("UPLOAD_FOLDER")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		respondWithErrorMessage(ctx, http.StatusInternalServerError, "failed to create upload folder: %v", err)
		return
	}
	// The client name is kept for logs and the upload record only.
	path := filepath.Join(folder, uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))
	if err := ctx.SaveUploadedFile(header, path); err != nil {
		respondWithErrorMessage(ctx, http.StatusInternalServerError, "failed to save %s: %v", fileName, err)
		return
	}

	resultKey, err := service.Impl.MicromedaIntf.UploadResults(ctx, fileName, path)
	if err != nil {
		respondWithErrorMessage(ctx, errorStatus(err), "failed to load %s: %v", fileName, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"result_key": resultKey,
	})
}

// GetGenomePropertiesTree responds with the results tree of the cached
// results, or of the default results when no key is given.
func GetGenomePropertiesTree(ctx *gin.Context) {
	document, err := service.Impl.MicromedaIntf.GetResultTree(ctx, ctx.Query("result_key"))
	if err != nil {
		respondWithErrorMessage(ctx, errorStatus(err), "%v", err)
		return
	}
	ctx.JSON(http.StatusOK, document)
}

// GetFasta responds with the sequences of the proteins supporting a step as
// a FASTA attachment.
func GetFasta(ctx *gin.Context) {
	propertyID := ctx.Param("property_id")
	stepNumber, err := strconv.Atoi(ctx.Param("step_number"))
	if err != nil {
		respondWithErrorMessage(ctx, http.StatusBadRequest, "invalid step number %q", ctx.Param("step_number"))
		return
	}

	topOnly := false
	if top := ctx.Query("top"); top != "" {
		if topOnly, err = strconv.ParseBool(top); err != nil {
			respondWithErrorMessage(ctx, http.StatusBadRequest, "invalid top %q", top)
			return
		}
	}

	fasta, err := service.Impl.MicromedaIntf.GetFasta(ctx, ctx.Query("result_key"), propertyID, stepNumber, topOnly)
	if err != nil {
		respondWithErrorMessage(ctx, errorStatus(err), "%v", err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%d.fasta", propertyID, stepNumber))
	ctx.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(fasta))
}

// GetUpload responds with the record of an upload.
func GetUpload(ctx *gin.Context) {
	record, err := service.Impl.MicromedaIntf.GetUploadRecord(ctx, ctx.Param("result_key"))
	if err != nil {
		respondWithErrorMessage(ctx, errorStatus(err), "%v", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"result_key":   record.ResultKey,
		"file_name":    record.FileName,
		"sample_count": record.SampleCount,
		"created_at":   record.CreatedAt.UnixMilli(),
		"expires_at":   record.ExpiresAt.UnixMilli(),
	})
}
