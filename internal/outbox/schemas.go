package outbox

const sleepLogRecordedSchema = `{
  "type": "object",
  "title": "SleepLogRecorded",
  "properties": {
    "log_id": {"type": "string"},
    "user_id": {"type": "integer"},
    "sleep_start": {"type": "string"},
    "sleep_end": {"type": "string"},
    "sleep_quality": {"type": "string", "enum": ["BAD", "OK", "GOOD"]},
    "duration_min": {"type": "integer"},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["log_id", "user_id", "sleep_start", "sleep_end", "sleep_quality", "duration_min", "recorded_at"],
  "additionalProperties": false
}`
