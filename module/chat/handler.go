package chat

import (
	"net/http"

	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/module/chat/service"
	"PPChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler 消息落库与查询。实时推送走 /socket，两者互不依赖。
type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Send(c *gin.Context) {
	var in service.SendParams
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.Fail(c, errs.ErrArgs.WrapMsg("invalid message body", "err", err.Error()))
		return
	}
	m, err := h.svc.Send(c.Request.Context(), midsec.UserID(c), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) Fetch(c *gin.Context) {
	var in service.FetchParams
	if err := c.ShouldBindQuery(&in); err != nil {
		middleware.Fail(c, errs.ErrArgs.WrapMsg("invalid query", "err", err.Error()))
		return
	}
	msgs, err := h.svc.Fetch(c.Request.Context(), midsec.UserID(c), in)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Routes 挂载 /api/chat，全部需要登录
func (h *Handler) Routes(api *gin.RouterGroup) {
	g := api.Group("/chat")
	middleware.POST(g, "/send", h.Send, middleware.RouteOpt{IsAuth: true})
	middleware.GET(g, "/fetch", h.Fetch, middleware.RouteOpt{IsAuth: true})
}
