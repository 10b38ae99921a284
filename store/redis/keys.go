package redis

// Redis key naming conventions for queue data.
// All keys are prefixed with "mtask:" to avoid collisions.

const keyPrefix = "mtask:"

// ── Task keys ──

// taskKey returns the key for a task entity: mtask:task:{id}
func taskKey(id string) string { return keyPrefix + "task:" + id }

// queueKey returns the Sorted Set key for a queue: mtask:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// taskIDsKey is the Set tracking all task IDs for enumeration.
const taskIDsKey = keyPrefix + "task_ids"

// ── DLQ keys ──

// dlqKey returns the key for a DLQ entry entity: mtask:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIDsKey is the Set tracking all DLQ entry IDs for enumeration.
const dlqIDsKey = keyPrefix + "dlq_ids"
