package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GIGOpenSource/Collide-sub009/internal/handler/response"
	"github.com/GIGOpenSource/Collide-sub009/internal/service"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
)

// UserIDHeader 网关鉴权后注入的用户 ID
const UserIDHeader = "X-User-Id"

type BoxHandler struct {
	svc service.BlindBoxService
}

func NewBoxHandler(svc service.BlindBoxService) *BoxHandler {
	return &BoxHandler{svc: svc}
}

// OpenBoxItem 开盒
// @Summary 开盒
// @Description 同步返回藏品，铸造异步完成，mint_confirmed 可通过查询接口获取
// @Tags BlindBox
// @Produce json
// @Param id path int true "Box Item ID"
// @Param X-User-Id header int true "Requester ID"
// @Success 200 {object} response.Response
// @Router /api/v1/box-items/{id}/open [post]
func (h *BoxHandler) OpenBoxItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(c.GetHeader(UserIDHeader), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, errno.ErrTokenInvalid)
		return
	}

	collectible, err := h.svc.Open(c.Request.Context(), id, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, collectible)
}

func (h *BoxHandler) GetBoxItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.GetBoxItem(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

func (h *BoxHandler) GetCollectible(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	collectible, err := h.svc.GetCollectible(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, collectible)
}

// ListUserCollectibles GET /users/:uid/collectibles?limit=50
func (h *BoxHandler) ListUserCollectibles(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.svc.ListCollectibles(c.Request.Context(), uid, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"items": list, "count": len(list)})
}

// ListUserBoxItems GET /users/:uid/box-items?limit=50
func (h *BoxHandler) ListUserBoxItems(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.svc.ListBoxItems(c.Request.Context(), uid, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"items": list, "count": len(list)})
}

// ListOperations 藏品的上链流水
func (h *BoxHandler) ListOperations(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	records, err := h.svc.ListOperations(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"items": records, "count": len(records)})
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, errno.ErrBind)
		return 0, false
	}
	return id, true
}
