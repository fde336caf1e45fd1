package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status  int
	Code    int
	Msg     string
	Elapsed time.Duration
	Err     error
}

// 压测用固定单价（整数金额，便于本地计算声明总额）
const (
	priceA = 1000
	priceB = 500
)

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	stock := flag.Int("stock", 5, "initial stock per product")
	nUsers := flag.Int("users", 20, "distinct users for the oversell phase")
	concurrency := flag.Int("c", 10, "max concurrency")
	pairs := flag.Int("pairs", 10, "reversed-order placement pairs for the deadlock phase")
	flag.Parse()

	client := &http.Client{Timeout: 15 * time.Second}

	// 准备用户与两件商品
	totalUsers := *nUsers + 2*(*pairs)
	userIDs := make([]uint, 0, totalUsers)
	for i := 0; i < totalUsers; i++ {
		id, err := createUser(client, *baseURL, i)
		if err != nil {
			panic(fmt.Sprintf("create user: %v", err))
		}
		userIDs = append(userIDs, id)
	}
	productA, err := createProduct(client, *baseURL, "loadtest-A", priceA, *stock)
	if err != nil {
		panic(fmt.Sprintf("create product A: %v", err))
	}
	productB, err := createProduct(client, *baseURL, "loadtest-B", priceB, *stock)
	if err != nil {
		panic(fmt.Sprintf("create product B: %v", err))
	}
	fmt.Printf("setup ok: product_a=%d product_b=%d stock=%d\n", productA, productB, *stock)

	// 1) 不超卖测试：N 个用户并发抢同一商品，成功数不得超过库存
	fmt.Printf("start oversell phase: users=%d concurrency=%d\n", *nUsers, *concurrency)
	results := runConcurrent(*concurrency, *nUsers, func(i int) Result {
		body := orderBody(userIDs[i], priceA, []item{{productA, 1}})
		return placeOrder(client, *baseURL, body)
	})
	printSummary("oversell", results)

	// 2) 死锁测试：成对请求以相反顺序引用 {A,B}，两边都必须在超时前完成
	fmt.Printf("start deadlock phase: pairs=%d\n", *pairs)
	deadlockResults := runConcurrent(*concurrency, 2*(*pairs), func(i int) Result {
		items := []item{{productA, 1}, {productB, 1}}
		if i%2 == 1 {
			items = []item{{productB, 1}, {productA, 1}}
		}
		body := orderBody(userIDs[*nUsers+i], priceA+priceB, items)
		return placeOrder(client, *baseURL, body)
	})
	printSummary("deadlock", deadlockResults)
}

type item struct {
	ProductID uint
	Quantity  int
}

func orderBody(userID uint, total int, items []item) map[string]any {
	reqItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		reqItems = append(reqItems, map[string]any{
			"product_id": it.ProductID,
			"quantity":   it.Quantity,
		})
	}
	return map[string]any{
		"user_id":        userID,
		"zip_code":       "12345",
		"address":        "压测大道 1 号",
		"detail_address": "42 室",
		"total_price":    fmt.Sprintf("%d", total),
		"items":          reqItems,
	}
}

func runConcurrent(concurrency, n int, job func(i int) Result) []Result {
	results := make([]Result, n)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = job(i)
		}(i)
	}
	wg.Wait()
	return results
}

func placeOrder(client *http.Client, baseURL string, body map[string]any) Result {
	start := time.Now()
	b, _ := json.Marshal(body)
	resp, err := client.Post(baseURL+"/api/orders", "application/json", bytes.NewReader(b))
	if err != nil {
		return Result{Err: err, Elapsed: time.Since(start)}
	}
	defer resp.Body.Close()

	var envelope struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &envelope)
	return Result{
		Status:  resp.StatusCode,
		Code:    envelope.Code,
		Msg:     envelope.Msg,
		Elapsed: time.Since(start),
	}
}

func printSummary(name string, results []Result) {
	var ok, outOfStock, other, failed int
	var maxElapsed time.Duration
	for _, r := range results {
		if r.Elapsed > maxElapsed {
			maxElapsed = r.Elapsed
		}
		switch {
		case r.Err != nil:
			failed++
		case r.Status == http.StatusOK:
			ok++
		case r.Code == 40008: // 库存不足
			outOfStock++
		default:
			other++
		}
	}
	fmt.Printf("[%s] total=%d ok=%d out_of_stock=%d other=%d transport_err=%d max_elapsed=%s\n",
		name, len(results), ok, outOfStock, other, failed, maxElapsed)
}

func createUser(client *http.Client, baseURL string, i int) (uint, error) {
	body := map[string]any{
		"name":  fmt.Sprintf("loadtest-%d", i),
		"email": fmt.Sprintf("loadtest-%d-%d@example.com", i, time.Now().UnixNano()),
	}
	return createEntity(client, baseURL+"/api/users", body)
}

func createProduct(client *http.Client, baseURL, name string, price, stock int) (uint, error) {
	body := map[string]any{
		"name":  fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		"price": fmt.Sprintf("%d", price),
		"stock": stock,
	}
	return createEntity(client, baseURL+"/api/products", body)
}

func createEntity(client *http.Client, url string, body map[string]any) (uint, error) {
	b, _ := json.Marshal(body)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	var envelope struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, err
	}
	if envelope.Data.ID == 0 {
		return 0, fmt.Errorf("missing id in response")
	}
	return envelope.Data.ID, nil
}
