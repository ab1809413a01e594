package repository

import (
	"context"

	"gorm.io/gorm"

	"doc-chat-go/internal/model"
)

// DocumentRepository 定义了文档与分块的持久化操作。
// 文档和它的全部分块作为一个逻辑单元写入和删除，不存在部分可见的状态。
type DocumentRepository interface {
	// CreateWithChunks 在单个事务内持久化文档及其全部分块。
	// 任一写入失败则整体回滚，读者不会看到不完整的文档。
	CreateWithChunks(ctx context.Context, doc *model.Document, chunks []*model.Chunk) error
	// DeleteWithChunks 在单个事务内删除文档及其全部分块。
	DeleteWithChunks(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uint) (*model.Document, error)
	FindDocumentsByUserID(ctx context.Context, userID uint) ([]model.Document, error)
	// FindChunksByUserID 按入库顺序返回该用户的全部分块。
	FindChunksByUserID(ctx context.Context, userID uint) ([]*model.Chunk, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// CreateWithChunks 在事务内写入文档行和全部分块行。
func (r *documentRepository) CreateWithChunks(ctx context.Context, doc *model.Document, chunks []*model.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		for _, chunk := range chunks {
			chunk.DocumentID = doc.ID
			chunk.UserID = doc.UserID
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error // 每100条记录一批
	})
}

// DeleteWithChunks 在事务内删除文档行及其分块行。
func (r *documentRepository) DeleteWithChunks(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(doc).Error
	})
}

// FindByID 根据主键查找文档。
func (r *documentRepository) FindByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindDocumentsByUserID 返回该用户的全部文档。
func (r *documentRepository) FindDocumentsByUserID(ctx context.Context, userID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&docs).Error
	return docs, err
}

// FindChunksByUserID 按主键升序（即入库顺序）返回该用户的全部分块。
func (r *documentRepository) FindChunksByUserID(ctx context.Context, userID uint) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&chunks).Error
	return chunks, err
}
