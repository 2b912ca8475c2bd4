package errors

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/dl-alexandre/gdm/internal/logging"
	"github.com/dl-alexandre/gdm/internal/types"
	"github.com/dl-alexandre/gdm/internal/utils"
	"google.golang.org/api/googleapi"
)

// ClassifyGoogleAPIError maps a raw client error onto a tool-owned AppError.
// Errors that are already AppErrors pass through unchanged.
func ClassifyGoogleAPIError(service string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	var apiErr *googleapi.Error
	if !stderrors.As(err, &apiErr) {
		return classifyTransportError(service, err, reqCtx, logger)
	}

	var code string
	var retryable bool

	switch apiErr.Code {
	case 400:
		code = utils.ErrCodeInvalidArgument
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "invalidSharingRequest":
				code = utils.ErrCodeSharingRestricted
			case "cannotAddParent", "teamDriveFileLimitExceeded":
				code = utils.ErrCodePolicyViolation
			}
		}
	case 401:
		code = utils.ErrCodeAuthExpired
	case 403:
		code = utils.ErrCodePermissionDenied
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "storageQuotaExceeded":
				code = utils.ErrCodeQuotaExceeded
			case "sharingRateLimitExceeded", "userRateLimitExceeded", "rateLimitExceeded":
				code = utils.ErrCodeRateLimited
				retryable = true
			case "dailyLimitExceeded":
				code = utils.ErrCodeRateLimited
			case "domainPolicy", "cannotShareTeamDriveWithNonGoogleAccounts", "cannotAddParent":
				code = utils.ErrCodePolicyViolation
			}
		}
	case 404:
		code = utils.ErrCodeFileNotFound
	case 409:
		code = utils.ErrCodeConflict
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeNetworkError
		retryable = true
	default:
		code = utils.ErrCodeUnknown
		retryable = apiErr.Code >= 500
	}

	logger.Error("API error classified",
		logging.F("httpStatus", apiErr.Code),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("message", apiErr.Message),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("service", service),
	)

	builder := utils.NewCLIError(code, apiErr.Message).
		WithHTTPStatus(apiErr.Code).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType)).
		WithContext("service", service)
	if reqCtx.Profile != "" {
		builder.WithContext("account", reqCtx.Profile)
	}
	if len(reqCtx.InvolvedFileIDs) > 0 {
		builder.WithContext("fileIds", reqCtx.InvolvedFileIDs)
	}

	if len(apiErr.Errors) > 0 {
		if service == "drive" {
			builder.WithDriveReason(apiErr.Errors[0].Reason)
		}
		switch apiErr.Errors[0].Reason {
		case "storageQuotaExceeded":
			builder.WithContext("suggestedAction", "free up space in the destination Drive")
		case "sharingRateLimitExceeded", "userRateLimitExceeded", "rateLimitExceeded":
			builder.WithContext("suggestedAction", "wait before re-running the migration")
		case "dailyLimitExceeded":
			builder.WithContext("suggestedAction", "quota will reset in 24 hours")
		case "insufficientFilePermissions":
			builder.WithContext("capability", "write_access_required")
		case "cannotAddParent":
			builder.WithContext("suggestedAction", "Drive allows a single parent per item; folder membership was not replicated")
		case "domainPolicy":
			builder.WithContext("suggestedAction", "contact domain administrator")
		}
	}

	switch code {
	case utils.ErrCodeAuthExpired:
		builder.WithContext("suggestedAction", "run 'gdm auth login' to re-authenticate")
	case utils.ErrCodeFileNotFound:
		builder.WithContext("suggestedAction", "verify the document still exists and is visible to the account")
	case utils.ErrCodeConflict:
		builder.WithContext("conflict", true)
	}

	if apiErr.Code >= 500 && apiErr.Code <= 504 {
		builder.WithContext("serverError", true).
			WithContext("suggestedAction", "temporary server error, re-run the migration")
	}

	return utils.NewAppError(builder.Build())
}

func classifyTransportError(service string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	code := utils.ErrCodeNetworkError
	retryable := true

	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		code = utils.ErrCodeTimeout
	case stderrors.Is(err, context.Canceled):
		code = utils.ErrCodeCancelled
		retryable = false
	case stderrors.As(err, &netErr) && netErr.Timeout():
		code = utils.ErrCodeTimeout
	}

	logger.Error("Non-API error",
		logging.F("error", err.Error()),
		logging.F("errorCode", code),
		logging.F("traceId", reqCtx.TraceID),
	)
	return utils.NewAppError(utils.NewCLIError(code, err.Error()).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("service", service).
		Build())
}
