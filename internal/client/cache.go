package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/mindbloom/mindbloom/internal/dto"
)

// 本地缓存键，与浏览器端 localStorage 的键名一致
const (
	KeyMoodData          = "mindbloom_mood_data"
	KeyTaskData          = "mindbloom_task_data"
	KeyUserSession       = "mindbloom_user_session"
	KeyAISuggestions     = "mindbloom_ai_suggestions"
	KeyQuotes            = "mindbloom_quotes"
	KeyCurrentUser       = "current_user"
	KeyLastSuggestionDay = "last_ai_suggestion_date"
)

const lastSuggestionLayout = "2006-01-02"

// Session 登录会话
type Session struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	LoginAt   time.Time `json:"loginAt"`
}

// Cache 基于 badger 的本地持久化缓存，每个键存一份 JSON
type Cache struct {
	db *badger.DB
}

// OpenCache 打开目录下的缓存
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("打开本地缓存失败: %w", err)
	}
	return &Cache{db: db}, nil
}

// OpenMemoryCache 内存缓存，进程退出即丢失
func OpenMemoryCache() (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("打开内存缓存失败: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get 键不存在时返回 false
func (c *Cache) get(key string, out any) (bool, error) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	return true, nil
}

func (c *Cache) delete(keys ...string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) Moods() ([]dto.MoodDTO, error) {
	var out []dto.MoodDTO
	_, err := c.get(KeyMoodData, &out)
	return out, err
}

func (c *Cache) SaveMoods(v []dto.MoodDTO) error { return c.set(KeyMoodData, v) }

func (c *Cache) Tasks() (map[string]dto.TaskDTO, error) {
	out := map[string]dto.TaskDTO{}
	_, err := c.get(KeyTaskData, &out)
	return out, err
}

func (c *Cache) SaveTasks(v map[string]dto.TaskDTO) error { return c.set(KeyTaskData, v) }

func (c *Cache) Suggestions() ([]dto.SuggestionDTO, error) {
	var out []dto.SuggestionDTO
	_, err := c.get(KeyAISuggestions, &out)
	return out, err
}

func (c *Cache) SaveSuggestions(v []dto.SuggestionDTO) error { return c.set(KeyAISuggestions, v) }

func (c *Cache) Quotes() ([]dto.QuoteDTO, error) {
	var out []dto.QuoteDTO
	_, err := c.get(KeyQuotes, &out)
	return out, err
}

func (c *Cache) SaveQuotes(v []dto.QuoteDTO) error { return c.set(KeyQuotes, v) }

// Session 当前会话，未登录返回 nil
func (c *Cache) Session() (*Session, error) {
	var s Session
	ok, err := c.get(KeyUserSession, &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (c *Cache) SaveSession(s Session, user dto.UserDTO) error {
	if err := c.set(KeyUserSession, s); err != nil {
		return err
	}
	return c.set(KeyCurrentUser, user)
}

func (c *Cache) ClearSession() error {
	return c.delete(KeyUserSession, KeyCurrentUser)
}

func (c *Cache) CurrentUser() (*dto.UserDTO, error) {
	var u dto.UserDTO
	ok, err := c.get(KeyCurrentUser, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// LastSuggestionDate 上次自动生成建议的本地日期，未生成过返回 false
func (c *Cache) LastSuggestionDate() (time.Time, bool, error) {
	var s string
	ok, err := c.get(KeyLastSuggestionDay, &s)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(lastSuggestionLayout, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("解析 %s 失败: %w", KeyLastSuggestionDay, err)
	}
	return t, true, nil
}

// SetLastSuggestionDate 按 t 自身时区的日历日记录
func (c *Cache) SetLastSuggestionDate(t time.Time) error {
	return c.set(KeyLastSuggestionDay, t.Format(lastSuggestionLayout))
}

// ReplaceAll 用一份全量数据覆盖本地记录
func (c *Cache) ReplaceAll(d dto.DataDTO) error {
	if d.TaskData == nil {
		d.TaskData = map[string]dto.TaskDTO{}
	}
	if err := c.SaveMoods(d.MoodData); err != nil {
		return err
	}
	if err := c.SaveTasks(d.TaskData); err != nil {
		return err
	}
	if err := c.SaveSuggestions(d.AISuggestions); err != nil {
		return err
	}
	return c.SaveQuotes(d.Quotes)
}

// Snapshot 本地全量数据
func (c *Cache) Snapshot() (dto.DataDTO, error) {
	var d dto.DataDTO
	var err error
	if d.MoodData, err = c.Moods(); err != nil {
		return d, err
	}
	if d.TaskData, err = c.Tasks(); err != nil {
		return d, err
	}
	if d.AISuggestions, err = c.Suggestions(); err != nil {
		return d, err
	}
	d.Quotes, err = c.Quotes()
	return d, err
}
