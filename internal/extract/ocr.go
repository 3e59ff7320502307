package extract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// OCR 页面图像文本识别能力,后端消费它而不关心引擎
type OCR interface {
	ImageText(jpegData []byte) (string, error)
	Close() error
}

// OCREngine 封装 tesseract 客户端
// 构造便宜,昂贵的引擎初始化推迟到第一次使用,之后幂等
type OCREngine struct {
	langs []string

	once    sync.Once
	initErr error

	// gosseract 客户端非并发安全,调用串行化
	mu     sync.Mutex
	client *gosseract.Client
}

var _ OCR = (*OCREngine)(nil)

// NewOCREngine 只记录语言,不加载引擎
func NewOCREngine(langs ...string) *OCREngine {
	if len(langs) == 0 {
		langs = []string{"tha", "eng"}
	}
	return &OCREngine{langs: langs}
}

func (e *OCREngine) ensureReady() error {
	e.once.Do(func() {
		client := gosseract.NewClient()
		if err := client.SetLanguage(strings.Join(e.langs, "+")); err != nil {
			client.Close()
			e.initErr = fmt.Errorf("failed to set OCR language: %w", err)
			return
		}
		if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
			client.Close()
			e.initErr = fmt.Errorf("failed to set page segmentation mode: %w", err)
			return
		}
		e.client = client
	})
	return e.initErr
}

// ImageText 识别一页 JPEG 图像的文本
func (e *OCREngine) ImageText(jpegData []byte) (string, error) {
	if err := e.ensureReady(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(jpegData); err != nil {
		return "", fmt.Errorf("failed to set OCR image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// Close 释放引擎
func (e *OCREngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}
