package config

const defaultDatabaseFile = "documents.db"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.IndexFile == "" {
		cfg.Storage.IndexFile = "store.index"
	}
	if cfg.Storage.MetadataFile == "" {
		cfg.Storage.MetadataFile = "metadata.json"
	}
	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = "audit_logs"
	}
	if cfg.Audit.File == "" {
		cfg.Audit.File = "workflow_audit.jsonl"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.MaxChunksPerDoc == 0 {
		cfg.Search.MaxChunksPerDoc = 3
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 200
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = 40
	}
	if cfg.Workflow.RulesPath == "" {
		cfg.Workflow.RulesPath = "rules.yaml"
	}
	if cfg.Security.DefaultRole == "" {
		cfg.Security.DefaultRole = "operator"
	}
	if cfg.Classifier.Labels == nil {
		cfg.Classifier.Labels = []LabelRule{
			{Keyword: "urgent", Label: "urgent", Confidence: 0.92},
			{Keyword: "payment", Label: "payment_request", Confidence: 0.87},
		}
	}
	if cfg.Classifier.Fallback.Label == "" {
		cfg.Classifier.Fallback = LabelRule{Label: "general", Confidence: 0.55}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
