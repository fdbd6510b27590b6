package booksvc

import (
	"context"

	"booklibrary/service/bulk"
)

// Bulk endpoints run the single-item operations through the bulk runner:
// items execute sequentially and one bad record never aborts its siblings.

func (s *service) BulkCreate(ctx context.Context, items []CreateItem) bulk.Result[*Book] {
	return bulk.Run(items,
		func(CreateItem) *int64 { return nil },
		func(it CreateItem) (*Book, error) {
			return s.Create(ctx, it.Title, it.Author, it.ISBN)
		})
}

func (s *service) BulkUpdate(ctx context.Context, items []UpdateItem) bulk.Result[*Book] {
	return bulk.Run(items,
		func(it UpdateItem) *int64 { return bulk.Ref(it.ID) },
		func(it UpdateItem) (*Book, error) {
			return s.Update(ctx, it.ID, it.Patch)
		})
}

func (s *service) BulkTrash(ctx context.Context, ids []int64) bulk.Result[Confirmation] {
	return s.runLifecycle(ctx, ids, s.SoftDelete)
}

func (s *service) BulkRestore(ctx context.Context, ids []int64) bulk.Result[Confirmation] {
	return s.runLifecycle(ctx, ids, s.Restore)
}

func (s *service) BulkHardDelete(ctx context.Context, ids []int64) bulk.Result[Confirmation] {
	return s.runLifecycle(ctx, ids, s.HardDelete)
}

func (s *service) runLifecycle(ctx context.Context, ids []int64, op func(context.Context, int64) (*Confirmation, error)) bulk.Result[Confirmation] {
	return bulk.Run(ids,
		func(id int64) *int64 { return bulk.Ref(id) },
		func(id int64) (Confirmation, error) {
			c, err := op(ctx, id)
			if err != nil {
				return Confirmation{}, err
			}
			return *c, nil
		})
}
