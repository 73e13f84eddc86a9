package postprocess

import (
	"hash/fnv"
	"math/rand"
	"strconv"

	"github.com/z-wentao/castscribe/pkg/models"
)

const (
	gapThresholdSec    = 3.0
	lengthJumpThresh   = 50
	maxSpeakers        = 4
	switchProbability  = 0.7 // 面试亮点：超过阈值后按概率切换，避免每次跳变都机械地换人
)

// LabelSpeakers 是一个占位的启发式说话人标注，不是真正的声纹分离。
//
// 当连续片段的间隔超过阈值，或文本长度突变时，按一定概率推进说话人编号。
// RNG 用 job ID 做种，保证同一个任务多次运行/测试得到相同的结果。
func LabelSpeakers(segments []models.Segment, jobID string) []models.Segment {
	if len(segments) == 0 {
		return segments
	}

	rng := rand.New(rand.NewSource(seedFromJobID(jobID)))
	out := make([]models.Segment, len(segments))
	copy(out, segments)

	speaker := 1
	out[0].Speaker = speakerName(speaker)

	for i := 1; i < len(out); i++ {
		gap := out[i].Start - out[i-1].End
		lengthJump := abs(len(out[i].Text) - len(out[i-1].Text))

		if (gap > gapThresholdSec || lengthJump > lengthJumpThresh) && rng.Float64() < switchProbability {
			speaker++
			if speaker > maxSpeakers {
				speaker = 1
			}
		}
		out[i].Speaker = speakerName(speaker)
	}

	return out
}

func speakerName(n int) string {
	return "Speaker " + strconv.Itoa(n)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// seedFromJobID 把任务 ID 哈希成一个确定性的种子，不依赖系统时钟
func seedFromJobID(jobID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(jobID))
	return int64(h.Sum64())
}
