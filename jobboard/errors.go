package jobboard

import (
	"net/http"

	"github.com/jobdeck/go-querycache/errcode"
)

// ModuleCode jobboard module code
const ModuleCode = 31

var (
	// ErrConfigInvalid staleness window configuration invalid
	ErrConfigInvalid = errcode.New(
		ModuleCode, 1,
		"jobboard", "error.jobboard.config_invalid", "jobboard cache configuration invalid",
		http.StatusInternalServerError,
	)
)
