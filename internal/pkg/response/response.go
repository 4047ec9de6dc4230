// Package response renders the service's success and fail envelopes.
// Fail bodies carry an errcode constant; the HTTP status stays 200 and
// clients switch on the code.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

// codeErr adapts an errcode constant to proxyutil's coded-error shape.
type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string { return e.msg }

func (e codeErr) Code() uint32 { return e.code }

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, codeErr{code: uint32(code), msg: message})
}
