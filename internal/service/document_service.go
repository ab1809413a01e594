package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"doc-chat-go/internal/config"
	"doc-chat-go/internal/model"
	"doc-chat-go/internal/rag"
	"doc-chat-go/internal/repository"
	"doc-chat-go/pkg/embedding"
	"doc-chat-go/pkg/events"
	"doc-chat-go/pkg/log"
	"doc-chat-go/pkg/mq"
	"doc-chat-go/pkg/storage"
	"doc-chat-go/pkg/tika"
)

// DocumentInfo 是文档列表接口返回的条目。
type DocumentInfo struct {
	ID       uint   `json:"id"`
	FileName string `json:"fileName"`
}

// DocumentService 定义了文档入库与管理的业务操作。
type DocumentService interface {
	// IngestFile 处理一次完整的文件上传：提取文本、入库、归档原始文件。
	IngestFile(ctx context.Context, userID uint, fileName string, file io.Reader) (*model.Document, error)
	// Ingest 将已提取的纯文本作为一个文档入库。
	// 分块、逐块向量化、文档与分块作为单个事务提交，成功后使该用户的
	// 向量索引缓存失效；任何一步失败都不会留下部分数据。
	Ingest(ctx context.Context, userID uint, fileName, fileMD5, rawText string) (*model.Document, error)
	// ListDocuments 返回该用户全部文档的 {id, fileName} 列表。
	ListDocuments(ctx context.Context, userID uint) ([]DocumentInfo, error)
	// DeleteDocument 删除文档及其全部分块并使缓存失效。
	DeleteDocument(ctx context.Context, userID, documentID uint) error
	// GenerateDownloadURL 为归档的原始文件生成预签名下载链接。
	GenerateDownloadURL(ctx context.Context, userID, documentID uint) (string, error)
}

type documentService struct {
	docRepo         repository.DocumentRepository
	embeddingClient embedding.Client
	tikaClient      *tika.Client
	cache           *rag.Cache
	minioCfg        config.MinIOConfig
	ragCfg          config.RAGConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	embeddingClient embedding.Client,
	tikaClient *tika.Client,
	cache *rag.Cache,
	minioCfg config.MinIOConfig,
	ragCfg config.RAGConfig,
) DocumentService {
	return &documentService{
		docRepo:         docRepo,
		embeddingClient: embeddingClient,
		tikaClient:      tikaClient,
		cache:           cache,
		minioCfg:        minioCfg,
		ragCfg:          ragCfg,
	}
}

// IngestFile 读取上传文件，经 Tika 提取文本后走标准入库流程，
// 入库成功后把原始文件归档到 MinIO。
func (s *documentService) IngestFile(ctx context.Context, userID uint, fileName string, file io.Reader) (*model.Document, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: 文件内容为空", ErrEmptyDocument)
	}
	fileMD5 := fmt.Sprintf("%x", md5.Sum(buf.Bytes()))

	log.Infof("[DocumentService] 开始处理上传文件, FileName: %s, FileMD5: %s, UserID: %d", fileName, fileMD5, userID)

	rawText, err := s.tikaClient.ExtractText(ctx, bytes.NewReader(buf.Bytes()), fileName)
	if err != nil {
		log.Errorf("[DocumentService] Tika 提取文本失败, FileName: %s, Error: %v", fileName, err)
		return nil, fmt.Errorf("%w: 文本提取失败: %v", ErrEmptyDocument, err)
	}

	doc, err := s.Ingest(ctx, userID, fileName, fileMD5, rawText)
	if err != nil {
		return nil, err
	}

	// 原始文件归档：失败只告警，入库结果已提交
	objectName := s.objectName(userID, fileMD5, fileName)
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentType); err != nil {
		log.Warnf("[DocumentService] 归档原始文件到 MinIO 失败, Object: %s, Error: %v", objectName, err)
	}

	return doc, nil
}

// Ingest 执行核心入库流程。
func (s *documentService) Ingest(ctx context.Context, userID uint, fileName, fileMD5, rawText string) (*model.Document, error) {
	// 1. 文本分块
	chunks := rag.Split(rawText, s.ragCfg.ChunkSize, s.ragCfg.ChunkOverlap)
	if len(chunks) == 0 {
		log.Warnf("[DocumentService] 未生成任何文本分块, 入库中止, FileName: %s", fileName)
		return nil, fmt.Errorf("%w: 未生成任何文本分块", ErrEmptyDocument)
	}
	log.Infof("[DocumentService] 文本分块完成, FileName: %s, 分块数: %d", fileName, len(chunks))

	// 2. 逐块向量化，全部缓存在内存后再统一提交，避免留下部分写入
	chunkRows := make([]*model.Chunk, 0, len(chunks))
	for i, content := range chunks {
		vector, err := s.embeddingClient.CreateEmbedding(ctx, content)
		if err != nil {
			log.Errorf("[DocumentService] 分块 %d 向量化失败, Error: %v", i, err)
			return nil, fmt.Errorf("%w: 分块 %d 向量化失败: %v", ErrEmbeddingUnavailable, i, err)
		}
		chunkRows = append(chunkRows, &model.Chunk{
			ChunkIndex: i,
			Content:    content,
			Embedding:  vector,
		})
	}

	// 3. 文档与全部分块在单个事务内提交
	doc := &model.Document{
		UserID:   userID,
		FileName: fileName,
		FileMD5:  fileMD5,
	}
	if err := s.docRepo.CreateWithChunks(ctx, doc, chunkRows); err != nil {
		log.Errorf("[DocumentService] 持久化文档失败, FileName: %s, Error: %v", fileName, err)
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	// 4. 入库成功后立即使该用户的向量索引缓存失效，
	// 保证后续查询一定能看到新文档
	s.cache.Invalidate(userID)
	log.Infof("[DocumentService] 文档入库成功, DocumentID: %d, 分块数: %d", doc.ID, len(chunkRows))

	// 5. 发布入库事件供审计消费，失败不影响请求结果
	event := events.DocumentIngestedEvent{
		UserID:     userID,
		DocumentID: doc.ID,
		FileName:   fileName,
		ChunkCount: len(chunkRows),
		IngestedAt: time.Now(),
	}
	if err := mq.PublishDocumentIngested(ctx, event); err != nil {
		log.Warnf("[DocumentService] 发布文档入库事件失败, DocumentID: %d, Error: %v", doc.ID, err)
	}

	return doc, nil
}

// ListDocuments 返回该用户的文档列表。
func (s *documentService) ListDocuments(ctx context.Context, userID uint) ([]DocumentInfo, error) {
	docs, err := s.docRepo.FindDocumentsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, DocumentInfo{ID: d.ID, FileName: d.FileName})
	}
	return infos, nil
}

// DeleteDocument 删除文档及其分块，并清理归档文件和索引缓存。
func (s *documentService) DeleteDocument(ctx context.Context, userID, documentID uint) error {
	doc, err := s.findOwnedDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}

	if err := s.docRepo.DeleteWithChunks(ctx, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	s.cache.Invalidate(userID)

	objectName := s.objectName(userID, doc.FileMD5, doc.FileName)
	if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, objectName); err != nil {
		log.Warnf("[DocumentService] 删除 MinIO 归档文件失败, Object: %s, Error: %v", objectName, err)
	}

	log.Infof("[DocumentService] 文档删除成功, DocumentID: %d, UserID: %d", documentID, userID)
	return nil
}

// GenerateDownloadURL 生成原始文件的预签名下载链接，有效期 15 分钟。
func (s *documentService) GenerateDownloadURL(ctx context.Context, userID, documentID uint) (string, error) {
	doc, err := s.findOwnedDocument(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	objectName := s.objectName(userID, doc.FileMD5, doc.FileName)
	return storage.GetPresignedURL(ctx, s.minioCfg.BucketName, objectName, 15*time.Minute)
}

// findOwnedDocument 查找文档并校验归属，不属于该用户时按不存在处理。
func (s *documentService) findOwnedDocument(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	doc, err := s.docRepo.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *documentService) objectName(userID uint, fileMD5, fileName string) string {
	return fmt.Sprintf("documents/%d/%s%s", userID, fileMD5, filepath.Ext(fileName))
}
