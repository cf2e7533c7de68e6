package constant

// StarterQuestions are offered on a session with no history.
var StarterQuestions = []string{
	"ขั้นตอนการฟ้องคดีปกครองมีอะไรบ้าง?",
	"ระยะเวลาในการฟ้องคดีปกครองคือกี่วัน?",
	"ค่าธรรมเนียมศาลปกครองคิดอย่างไร?",
}

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	// AnalyticsLogModule tags entries in the analytics log.
	AnalyticsLogModule = "ANALYTICS"
)
