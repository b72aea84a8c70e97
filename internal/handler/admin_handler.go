package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GIGOpenSource/Collide-sub009/internal/handler/request"
	"github.com/GIGOpenSource/Collide-sub009/internal/handler/response"
	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/service"
	"github.com/GIGOpenSource/Collide-sub009/pkg/errno"
	"github.com/GIGOpenSource/Collide-sub009/pkg/validator"
)

type AdminHandler struct {
	boxes      service.BlindBoxService
	reconciler service.Reconciler
}

func NewAdminHandler(boxes service.BlindBoxService, reconciler service.Reconciler) *AdminHandler {
	return &AdminHandler{boxes: boxes, reconciler: reconciler}
}

// AllocateBoxItem 订单服务分配库存后创建格子 (INIT)
// @Summary 分配盲盒格子
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.AllocateBoxItemRequest true "Allocate Request"
// @Success 200 {object} response.Response
// @Router /admin/box-items [post]
func (h *AdminHandler) AllocateBoxItem(c *gin.Context) {
	var req request.AllocateBoxItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindErr(err))
		return
	}

	item := &model.BoxItem{
		BoxID:            req.BoxID,
		GoodsID:          req.GoodsID,
		CollectibleName:  req.CollectibleName,
		CollectibleCover: req.CollectibleCover,
		Rarity:           req.Rarity,
		PurchasePrice:    req.PurchasePrice,
		ReferencePrice:   req.ReferencePrice,
	}
	if err := h.boxes.Allocate(c.Request.Context(), item); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// AssignBoxItem 支付完成后绑定用户 (INIT -> ASSIGNED)
func (h *AdminHandler) AssignBoxItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req request.AssignBoxItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindErr(err))
		return
	}

	item, err := h.boxes.Assign(c.Request.Context(), id, req.OwnerID, req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

// TriggerReconcile 手动触发一次对账
// 与定时任务共享进程内单飞，重复触发会等待同一次运行
func (h *AdminHandler) TriggerReconcile(c *gin.Context) {
	processed, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"processed": processed,
		"stats":     h.reconciler.LastStats(),
	})
}

// ReconcileStats 最近一次对账统计
func (h *AdminHandler) ReconcileStats(c *gin.Context) {
	response.Success(c, h.reconciler.LastStats())
}

// bindErr 保留 ErrBind 的错误码，消息替换为具体的校验提示
func bindErr(err error) errno.Errno {
	return errno.Errno{Code: errno.ErrBind.Code, Message: validator.Message(err)}
}
