package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

func TestHandleError_ConfigErrorsAreClientVisible(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/databases/kb/ask", nil)

	handleError(c, fmt.Errorf("%w: overlap out of range", errs.ErrConfig))

	body := w.Body.String()
	require.Contains(t, body, "invalid configuration")
	require.NotContains(t, body, "internal error")
}
