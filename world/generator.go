// Package world 按区块惰性生成确定性的无尽雪坡：树、石头、树桩、跳台与拾取物。
package world

import (
	"math"

	"skirace/config"
	"skirace/rng"
)

// ChunkKey 区块坐标
type ChunkKey struct {
	X, Y int
}

// Generator 单个对局（或客户端预测）独占的世界；非并发安全，由所属协程驱动
type Generator struct {
	seed   uint32
	tuning config.Tuning

	objects   map[string]*Object
	chunks    map[ChunkKey][]*Object
	generated map[ChunkKey]struct{}
}

// NewGenerator 以对局种子创建世界
func NewGenerator(seed uint32, tuning config.Tuning) *Generator {
	return &Generator{
		seed:      seed,
		tuning:    tuning,
		objects:   make(map[string]*Object),
		chunks:    make(map[ChunkKey][]*Object),
		generated: make(map[ChunkKey]struct{}),
	}
}

// Seed 对局种子
func (g *Generator) Seed() uint32 { return g.seed }

// ChunkSeed 区块局部种子：只依赖 (seed, cx, cy)，与生成顺序无关
func ChunkSeed(seed uint32, cx, cy int) uint32 {
	return seed ^ uint32(int32(cx))*73856093 ^ uint32(int32(cy))*19349663
}

// ChunkOf 坐标所在区块；x 方向以 0 为区块中心线
func (g *Generator) ChunkOf(x, y float64) ChunkKey {
	s := g.tuning.ChunkSize
	return ChunkKey{
		X: int(math.Floor((x + s/2) / s)),
		Y: int(math.Floor(y / s)),
	}
}

// chunkOrigin 区块左上角
func (g *Generator) chunkOrigin(cx, cy int) (float64, float64) {
	s := g.tuning.ChunkSize
	return float64(cx)*s - s/2, float64(cy) * s
}

type spawnRule struct {
	kind    Kind // 为空表示拾取物，具体种类随机
	density float64
	radius  func(r *rng.Rand) float64
}

func (g *Generator) rules() []spawnRule {
	t := g.tuning
	fixed := func(v float64) func(*rng.Rand) float64 {
		return func(*rng.Rand) float64 { return v }
	}
	return []spawnRule{
		{KindTree, t.DensityTree, func(r *rng.Rand) float64 { return r.NextFloat(12, 18) }},
		{KindRock, t.DensityRock, func(r *rng.Rand) float64 { return r.NextFloat(10, 16) }},
		{KindStump, t.DensityStump, fixed(10)},
		{KindRamp, t.DensityRamp, fixed(20)},
		{"", t.DensityPickup, fixed(12)},
	}
}

// GenerateChunk 生成（或直接返回已生成的）区块对象；幂等
func (g *Generator) GenerateChunk(cx, cy int) []*Object {
	key := ChunkKey{cx, cy}
	if _, ok := g.generated[key]; ok {
		return g.chunks[key]
	}
	g.generated[key] = struct{}{}

	r := rng.New(ChunkSeed(g.seed, cx, cy))
	s := g.tuning.ChunkSize
	x0, y0 := g.chunkOrigin(cx, cy)
	centerX := x0 + s/2
	halfPath := g.tuning.PathWidth / 2
	area := s * s

	var out []*Object
	seen := make(map[string]struct{})
	for _, rule := range g.rules() {
		count := int(math.Floor(area * rule.density))
		for i := 0; i < count; i++ {
			// 先完成本对象的全部抽取，过滤不影响后续随机流
			x := r.NextFloat(x0, x0+s)
			y := r.NextFloat(y0, y0+s)
			radius := rule.radius(r)
			kind := rule.kind
			if kind == "" {
				kind = pickupKinds[r.NextInt(0, len(pickupKinds)-1)]
			}

			if math.Abs(x-centerX) < halfPath {
				continue
			}
			if y < g.tuning.StartClearance {
				continue
			}
			id := ObjectID(kind, x, y)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			// 跨区块撞 ID 时先注册者胜出，同一 ID 只存在一个对象
			if _, exists := g.objects[id]; exists {
				continue
			}
			obj := &Object{ID: id, Kind: kind, X: x, Y: y, Radius: radius, Active: true}
			g.objects[id] = obj
			out = append(out, obj)
		}
	}
	g.chunks[key] = out
	return out
}

// ObjectsNear 返回圆形范围内仍然有效的对象；覆盖区块按需生成
// 结果顺序确定：区块按行优先，区块内按生成顺序
func (g *Generator) ObjectsNear(x, y, radius float64) []*Object {
	lo := g.ChunkOf(x-radius, y-radius)
	hi := g.ChunkOf(x+radius, y+radius)

	var out []*Object
	r2 := radius * radius
	for cy := lo.Y; cy <= hi.Y; cy++ {
		for cx := lo.X; cx <= hi.X; cx++ {
			for _, obj := range g.GenerateChunk(cx, cy) {
				if !obj.Active {
					continue
				}
				dx, dy := obj.X-x, obj.Y-y
				if dx*dx+dy*dy <= r2 {
					out = append(out, obj)
				}
			}
		}
	}
	return out
}

// Object 按 ID 查找已生成的对象
func (g *Generator) Object(id string) (*Object, bool) {
	obj, ok := g.objects[id]
	return obj, ok
}

// Consume 将拾取物标记为失效；已失效或非拾取物返回 false
func (g *Generator) Consume(id string) bool {
	obj, ok := g.objects[id]
	if !ok || !obj.Active || !obj.Kind.IsPickup() {
		return false
	}
	obj.Active = false
	return true
}

// Len 已注册对象数
func (g *Generator) Len() int { return len(g.objects) }

// ChunksGenerated 已生成区块数
func (g *Generator) ChunksGenerated() int { return len(g.generated) }
