package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"gorm.io/gorm"
)

// 单据编号前缀，同时作为计数器名称
const (
	SeqPurchaseOrder = "PO"
	SeqGRN           = "GRN"
	SeqSalesOrder    = "SO"
	SeqInvoice       = "INV"
	SeqManufacturing = "MO"
	SeqVoucher       = "VCH"
	SeqAdjustment    = "ADJ"
	SeqTransfer      = "TRF"
)

// Numberer 生成单据编号：PREFIX-001, PREFIX-002 ...
// 计数器在调用方事务内原子递增，事务回滚时编号一并回滚。
type Numberer struct {
	repo *repository.SequenceRepository
}

func NewNumberer(repo *repository.SequenceRepository) *Numberer {
	return &Numberer{repo: repo}
}

func (n *Numberer) Next(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	v, err := n.repo.WithTx(tx).Next(ctx, prefix)
	if err != nil {
		return "", errs.Internal("generate "+prefix+" number", err)
	}
	return FormatNumber(prefix, v), nil
}

// FormatNumber pads to three digits; larger values keep every digit.
func FormatNumber(prefix string, v int64) string {
	return fmt.Sprintf("%s-%03d", prefix, v)
}
