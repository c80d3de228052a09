// Package rxlite provides a minimal push-based reactive stream engine for Go
// 精简的推送式响应式流引擎：Observable、操作符、调度器与协作式取消
package rxlite

import (
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// ============================================================================
// 观察者协议
// ============================================================================

// Observer 观察者接口：零个或多个OnNext，之后最多一个OnError或OnComplete
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// OnNext 处理下一个值的函数
type OnNext[T any] func(value T)

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，用于过滤
type Predicate[T any] func(value T) bool

// Transformer 转换函数，用于映射
type Transformer[T, R any] func(value T) (R, error)

// callbackObserver 将三个回调适配为Observer
type callbackObserver[T any] struct {
	onNext     OnNext[T]
	onError    OnError
	onComplete OnComplete
}

// NewObserver 使用回调函数创建观察者，nil回调会被忽略
func NewObserver[T any](onNext OnNext[T], onError OnError, onComplete OnComplete) Observer[T] {
	return &callbackObserver[T]{
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}
}

func (o *callbackObserver[T]) OnNext(value T) {
	if o.onNext != nil {
		o.onNext(value)
	}
}

func (o *callbackObserver[T]) OnError(err error) {
	if o.onError != nil {
		o.onError(err)
	}
}

func (o *callbackObserver[T]) OnComplete() {
	if o.onComplete != nil {
		o.onComplete()
	}
}

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源，重复调用是安全的
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed *atomic.Bool
	action   func()
}

// NewBaseDisposable 创建基础可释放资源，action最多执行一次
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{
		disposed: atomic.NewBool(false),
		action:   action,
	}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if d.disposed.CompareAndSwap(false, true) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// CompositeDisposable 组合式资源管理器
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{}
	for _, d := range disposables {
		cd.Add(d)
	}
	return cd
}

// Add 添加可释放资源；若已释放则立即释放新资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Len 返回当前持有的资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	// 在锁外释放，避免资源回调重入Add
	for _, resource := range resources {
		resource.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，只负责提交一个无参数的工作单元异步执行
type Scheduler interface {
	// Schedule 提交一个任务
	Schedule(task func())
	// Name 调度器名称，用于日志与指标
	Name() string
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 调度器配置
type Config struct {
	Name    string
	Logger  zerolog.Logger
	Metrics *Metrics
}

// DefaultConfig 默认配置：不输出日志、不采集指标
func DefaultConfig() *Config {
	return &Config{
		Logger: zerolog.Nop(),
	}
}

func newConfig(name string, options []Option) *Config {
	config := DefaultConfig()
	config.Name = name
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}

// loggerOption 日志选项
type loggerOption struct {
	logger zerolog.Logger
}

// Apply 应用日志选项
func (o *loggerOption) Apply(config *Config) {
	config.Logger = o.logger
}

// WithLogger 指定调度器使用的日志记录器
func WithLogger(logger zerolog.Logger) Option {
	return &loggerOption{logger: logger}
}

// metricsOption 指标选项
type metricsOption struct {
	metrics *Metrics
}

// Apply 应用指标选项
func (o *metricsOption) Apply(config *Config) {
	config.Metrics = o.metrics
}

// WithMetrics 指定调度器上报的指标集合
func WithMetrics(metrics *Metrics) Option {
	return &metricsOption{metrics: metrics}
}

// nameOption 名称选项
type nameOption struct {
	name string
}

// Apply 应用名称选项
func (o *nameOption) Apply(config *Config) {
	if o.name != "" {
		config.Name = o.name
	}
}

// WithName 覆盖调度器的默认名称
func WithName(name string) Option {
	return &nameOption{name: name}
}
