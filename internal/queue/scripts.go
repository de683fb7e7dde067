package queue

import "github.com/redis/go-redis/v9"

// Each transition script guards on removing the job id from its current
// list: a zero removal count means another actor already moved the job and
// the script becomes a no-op.

// KEYS: processing list, job hash, batch hash (may be unused), completed counter
// ARGV: job id, job json, record ttl seconds, 1 when the job belongs to a batch
var completeScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('EXPIRE', KEYS[2], ARGV[3])
end
redis.call('INCR', KEYS[4])
if ARGV[4] == '1' then
  redis.call('HINCRBY', KEYS[3], 'completed', 1)
end
return 1
`)

// KEYS: processing list, job hash, delayed set
// ARGV: job id, job json, ready-at score
var retryScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], 'data', ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// KEYS: processing list, job hash, dead letter list, batch hash, failed counter
// ARGV: job id, job json, 1 when the job belongs to a batch
var deadLetterScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], 'data', ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[1])
redis.call('INCR', KEYS[5])
if ARGV[3] == '1' then
  redis.call('HINCRBY', KEYS[4], 'failed', 1)
end
return 1
`)

// KEYS: delayed set, pending list
// ARGV: now
var promoteScript = redis.NewScript(`
local ready = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ready) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
end
return #ready
`)
