package models

// ArtifactRole 标记一个音频产物在流水线中的来源
type ArtifactRole string

const (
	RoleOriginal   ArtifactRole = "original"
	RoleTranscoded ArtifactRole = "transcoded"
	RoleSegment    ArtifactRole = "segment"
)

// AudioArtifact 磁盘上的一个音频文件及其元数据
type AudioArtifact struct {
	Path      string
	SizeBytes int64
	Ext       string
	Role      ArtifactRole
}

// ProviderLimitBytes 服务商单次请求的硬上限
const ProviderLimitBytes = 25 * 1024 * 1024

// UploadLimitBytes 接口允许的上传体大小上限
const UploadLimitBytes = 32 * 1024 * 1024

// SegmentDurationSec 固定分片时长，决定合并阶段的偏移算法
const SegmentDurationSec = 300

// PlanKind 区分单文件计划与分片计划
type PlanKind int

const (
	PlanSingle PlanKind = iota
	PlanSegmented
)

// Plan 是准备阶段的输出：单文件或者按时间顺序排列的分片集合
//
// 用带 Kind 标记的结构体代替 interface{}/map，保证编译期就能区分两种形态。
type Plan struct {
	Kind               PlanKind
	Single             *AudioArtifact
	Segments           []AudioArtifact
	SegmentDurationSec int
}

// NewSinglePlan 构造单文件计划
func NewSinglePlan(a AudioArtifact) Plan {
	return Plan{Kind: PlanSingle, Single: &a}
}

// NewSegmentedPlan 构造分片计划
func NewSegmentedPlan(segments []AudioArtifact, segmentDurationSec int) Plan {
	return Plan{Kind: PlanSegmented, Segments: segments, SegmentDurationSec: segmentDurationSec}
}

// TotalSegments 返回该计划对应的分片数量（单文件计为 1）
func (p Plan) TotalSegments() int {
	if p.Kind == PlanSingle {
		return 1
	}
	return len(p.Segments)
}
